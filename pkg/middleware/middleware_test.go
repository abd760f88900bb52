package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	config := DefaultConfig("allocation-service", logging.Nop().Logger)
	config.Metrics = metrics.New(metrics.DefaultConfig("allocation-service"))
	Setup(router, config)
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	router := newTestRouter()
	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestCorrelationID_GeneratedAndStoredInRequestContext(t *testing.T) {
	router := newTestRouter()
	var fromContext string
	router.GET("/ping", func(c *gin.Context) {
		fromContext = logging.CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	header := w.Header().Get(HeaderCorrelationID)
	assert.NotEmpty(t, header)
	assert.Equal(t, header, fromContext)
}

func TestErrorHandler_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("warehouse not found: W9"), http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"duplicate", fmt.Errorf("duplicate warehouse: W1"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			router.GET("/fail", WrapHandler(func(c *gin.Context) error { return tt.err }))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "/fail", resp.Path)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	router := newTestRouter()
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, w).Code)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	router := newTestRouter()
	router.GET("/only-get", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", decodeError(t, w).Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/only-get", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, w).Code)
}

func TestContentType_RejectsNonJSONBody(t *testing.T) {
	router := newTestRouter()
	router.POST("/things", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestReadinessCheck(t *testing.T) {
	router := gin.New()
	ready := false
	router.GET("/ready", ReadinessCheck("allocation-service", func() error {
		if !ready {
			return fmt.Errorf("mongodb unreachable")
		}
		return nil
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type lineRequest struct {
	SKU      string `json:"sku" binding:"required,sku" validate:"required,sku"`
	Quantity int64  `json:"quantity" binding:"gte=0" validate:"gte=0"`
}

type orderRequest struct {
	Lines []lineRequest `json:"lines" binding:"required,unique=SKU,dive" validate:"required,unique=SKU,dive"`
}

func TestValidateStruct(t *testing.T) {
	assert.Nil(t, ValidateStruct(orderRequest{Lines: []lineRequest{{SKU: "A-1", Quantity: 2}}}))

	appErr := ValidateStruct(orderRequest{Lines: []lineRequest{{SKU: " ", Quantity: -1}}})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Contains(t, appErr.Details, "lines[0].sku")
	assert.Contains(t, appErr.Details, "lines[0].quantity")

	appErr = ValidateStruct(orderRequest{Lines: []lineRequest{{SKU: "A", Quantity: 1}, {SKU: "A", Quantity: 2}}})
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Details, "lines")
}

func TestBindAndValidate(t *testing.T) {
	router := newTestRouter()
	router.POST("/orders", func(c *gin.Context) {
		var req orderRequest
		if appErr := BindAndValidate(c, &req); appErr != nil {
			AbortWithAppError(c, appErr)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post(`{"lines":[{"sku":"A","quantity":1}]}`).Code)

	w := post(`{"lines":[{"sku":"","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	w = post(`{"lines":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, w).Code)
}

func TestLoggerWithConfig_SkipsExcludedPaths(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(LoggerWithConfig(DefaultLoggerConfig(logger)))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Contains(t, buf.String(), `"path":"/api"`)
}
