package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/allocation-service/api"
	"github.com/wms-platform/allocation-service/internal/application"
	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/contracts/openapi"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStockRepo struct {
	mu     sync.Mutex
	stocks map[string]*domain.WarehouseStock
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{stocks: make(map[string]*domain.WarehouseStock)}
}

func (r *memoryStockRepo) Save(_ context.Context, stock *domain.WarehouseStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stocks[stock.WarehouseID] = stock
	return nil
}

func (r *memoryStockRepo) FindByID(_ context.Context, warehouseID string) (*domain.WarehouseStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stocks[warehouseID], nil
}

func (r *memoryStockRepo) FindAll(_ context.Context) ([]*domain.WarehouseStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WarehouseStock, 0, len(r.stocks))
	for _, s := range r.stocks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

func (r *memoryStockRepo) Delete(_ context.Context, warehouseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stocks[warehouseID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrWarehouseNotFound, warehouseID)
	}
	delete(r.stocks, warehouseID)
	return nil
}

type testServer struct {
	t         *testing.T
	router    *gin.Engine
	validator *openapi.Validator
}

func newTestServer(t *testing.T, repo domain.WarehouseStockRepository, ready func() error) *testServer {
	t.Helper()

	validator, err := openapi.NewValidatorFromBytes(api.OpenAPI)
	require.NoError(t, err)

	if ready == nil {
		ready = func() error { return nil }
	}
	logger := logging.Nop()
	service := application.NewAllocationApplicationService(repo, nil, nil, nil, logger)
	m := metrics.New(metrics.DefaultConfig("allocation-test"))

	return &testServer{
		t:         t,
		router:    newRouter(service, m, logger, ready),
		validator: validator,
	}
}

// do serves the request and checks both sides against the OpenAPI contract
func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := s.newRequest(method, path, body)
	require.NoError(s.t, s.validator.ValidateRequest(req))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.NoError(s.t, s.validator.ValidateResponse(req, rec.Code, rec.Header(), rec.Body.Bytes()), rec.Body.String())
	return rec
}

// doRaw serves a request the contract does not admit
func (s *testServer) doRaw(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, s.newRequest(method, path, body))
	return rec
}

func (s *testServer) newRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAllocate_InlineInventory(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name          string
		body          string
		fulfillable   bool
		strategy      string
		shipmentOrder []string
	}{
		{
			name:          "single warehouse",
			body:          `{"lines":[{"sku":"apple","quantity":1}],"warehouses":[{"warehouseId":"owd","stock":[{"sku":"apple","quantity":1}]}]}`,
			fulfillable:   true,
			strategy:      "single_warehouse",
			shipmentOrder: []string{"owd"},
		},
		{
			name:          "split keeps warehouse order",
			body:          `{"lines":[{"sku":"apple","quantity":10}],"warehouses":[{"warehouseId":"owd","stock":[{"sku":"apple","quantity":5}]},{"warehouseId":"dm","stock":[{"sku":"apple","quantity":5}]}]}`,
			fulfillable:   true,
			strategy:      "split",
			shipmentOrder: []string{"owd", "dm"},
		},
		{
			name:          "not enough inventory",
			body:          `{"lines":[{"sku":"apple","quantity":1}],"warehouses":[{"warehouseId":"owd","stock":[{"sku":"apple","quantity":0}]}]}`,
			fulfillable:   false,
			strategy:      "unfulfillable",
			shipmentOrder: []string{},
		},
		{
			name:          "empty inventory",
			body:          `{"lines":[{"sku":"apple","quantity":1}],"warehouses":[]}`,
			fulfillable:   false,
			strategy:      "unfulfillable",
			shipmentOrder: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/allocations", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			result := decode[application.AllocationResultDTO](t, rec)
			assert.Equal(t, tt.fulfillable, result.Fulfillable)
			assert.Equal(t, tt.strategy, result.Strategy)

			ids := make([]string, 0, len(result.Shipments))
			for _, sh := range result.Shipments {
				ids = append(ids, sh.WarehouseID)
			}
			assert.Equal(t, tt.shipmentOrder, ids)
		})
	}
}

func TestAllocate_Validation(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{
			name:       "negative quantity",
			body:       `{"lines":[{"sku":"apple","quantity":-1}],"warehouses":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "lines[0].quantity",
		},
		{
			name:       "duplicate sku",
			body:       `{"lines":[{"sku":"apple","quantity":1},{"sku":"apple","quantity":2}],"warehouses":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "lines",
		},
		{
			name:       "duplicate warehouse",
			body:       `{"lines":[{"sku":"apple","quantity":1}],"warehouses":[{"warehouseId":"owd","stock":[]},{"warehouseId":"owd","stock":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "warehouses",
		},
		{
			name:       "blank sku",
			body:       `{"lines":[{"sku":"","quantity":1}],"warehouses":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "lines[0].sku",
		},
		{
			name:       "missing lines",
			body:       `{"warehouses":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "lines",
		},
		{
			name:       "malformed body",
			body:       `{"lines":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doRaw(http.MethodPost, "/api/v1/allocations", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			resp := decode[middleware.APIErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Code)
			if tt.wantField != "" {
				assert.Contains(t, resp.Details, tt.wantField)
			}
		})
	}
}

func TestAllocate_WithoutStore(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(http.MethodPost, "/api/v1/allocations", `{"lines":[{"sku":"apple","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarehouseLifecycle(t *testing.T) {
	s := newTestServer(t, newMemoryStockRepo(), nil)

	rec := s.do(http.MethodPut, "/api/v1/warehouses/owd/stock", `{"priority":2,"stock":[{"sku":"apple","quantity":5}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := decode[application.WarehouseStockDTO](t, rec)
	assert.Equal(t, "owd", stored.WarehouseID)
	assert.Equal(t, uint64(5), stored.TotalUnits)

	rec = s.do(http.MethodPut, "/api/v1/warehouses/dm/stock", `{"priority":1,"stock":[{"sku":"apple","quantity":5}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("list follows priority", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/warehouses", "")
		require.Equal(t, http.StatusOK, rec.Code)

		snapshot := decode[application.InventorySnapshotDTO](t, rec)
		require.Equal(t, 2, snapshot.Count)
		assert.Equal(t, "dm", snapshot.Warehouses[0].WarehouseID)
		assert.Equal(t, "owd", snapshot.Warehouses[1].WarehouseID)
	})

	t.Run("allocate from stored inventory", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/allocations", `{"lines":[{"sku":"apple","quantity":8}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		result := decode[application.AllocationResultDTO](t, rec)
		require.True(t, result.Fulfillable)
		require.Len(t, result.Shipments, 2)
		assert.Equal(t, "dm", result.Shipments[0].WarehouseID)
		assert.Equal(t, []application.LineDTO{{SKU: "apple", Quantity: 5}}, result.Shipments[0].Items)
		assert.Equal(t, "owd", result.Shipments[1].WarehouseID)
		assert.Equal(t, []application.LineDTO{{SKU: "apple", Quantity: 3}}, result.Shipments[1].Items)
	})

	t.Run("explicit warehouse order", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/allocations", `{"lines":[{"sku":"apple","quantity":8}],"warehouseIds":["owd","dm"]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		result := decode[application.AllocationResultDTO](t, rec)
		require.Len(t, result.Shipments, 2)
		assert.Equal(t, "owd", result.Shipments[0].WarehouseID)
		assert.Equal(t, []application.LineDTO{{SKU: "apple", Quantity: 5}}, result.Shipments[0].Items)
	})

	t.Run("unknown warehouse in explicit order", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/allocations", `{"lines":[{"sku":"apple","quantity":1}],"warehouseIds":["nowhere"]}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get one", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/warehouses/owd", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode[application.WarehouseStockDTO](t, rec).Priority)

		rec = s.do(http.MethodGet, "/api/v1/warehouses/nowhere", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("remove", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/api/v1/warehouses/owd", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodDelete, "/api/v1/warehouses/owd", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRegisterWarehouseStock_Validation(t *testing.T) {
	s := newTestServer(t, newMemoryStockRepo(), nil)

	rec := s.doRaw(http.MethodPut, "/api/v1/warehouses/-bad/stock", `{"priority":1,"stock":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[middleware.APIErrorResponse](t, rec).Details, "warehouseId")

	rec = s.doRaw(http.MethodPut, "/api/v1/warehouses/owd/stock", `{"priority":-1,"stock":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[middleware.APIErrorResponse](t, rec).Details, "priority")

	rec = s.doRaw(http.MethodPut, "/api/v1/warehouses/owd/stock", `{"priority":1,"stock":[{"sku":"apple","quantity":1},{"sku":"apple","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarehouses_WithoutStore(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(http.MethodGet, "/api/v1/warehouses", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil, func() error { return fmt.Errorf("mongodb unreachable") })

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.doRaw(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnsupportedContentType(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/allocations", bytes.NewBufferString("lines: []"))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
