package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/allocation-service/internal/application"
	"github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/middleware"
)

type lineRequest struct {
	SKU      string `json:"sku" binding:"required,sku"`
	Quantity int64  `json:"quantity" binding:"gte=0"`
}

type warehouseRequest struct {
	WarehouseID string        `json:"warehouseId" binding:"required,warehouse_id"`
	Stock       []lineRequest `json:"stock" binding:"unique=SKU,dive"`
}

type allocationRequest struct {
	AllocationID string             `json:"allocationId" binding:"omitempty,max=128"`
	OrderID      string             `json:"orderId" binding:"omitempty,max=128"`
	Lines        []lineRequest      `json:"lines" binding:"required,unique=SKU,dive"`
	Warehouses   []warehouseRequest `json:"warehouses" binding:"omitempty,unique=WarehouseID,dive"`
	WarehouseIDs []string           `json:"warehouseIds" binding:"omitempty,unique,dive,warehouse_id"`
}

type warehouseStockRequest struct {
	Priority int           `json:"priority" binding:"gte=0"`
	Stock    []lineRequest `json:"stock" binding:"required,unique=SKU,dive"`
}

func newRouter(service *application.AllocationApplicationService, m *metrics.Metrics, logger *logging.Logger, ready func() error) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.Metrics = m
	middleware.Setup(router, middlewareConfig)

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1")
	{
		api.POST("/allocations", allocateHandler(service, logger))

		api.GET("/warehouses", listWarehousesHandler(service, logger))
		api.GET("/warehouses/:warehouseId", getWarehouseHandler(service, logger))
		api.PUT("/warehouses/:warehouseId/stock", registerWarehouseStockHandler(service, logger))
		api.DELETE("/warehouses/:warehouseId", removeWarehouseHandler(service, logger))
	}

	return router
}

func allocateHandler(service *application.AllocationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req allocationRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.Allocate(c.Request.Context(), req.toCommand())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		// Unfulfillable orders are a normal outcome
		c.JSON(http.StatusOK, result)
	}
}

func listWarehousesHandler(service *application.AllocationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		snapshot, err := service.GetInventorySnapshot(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, snapshot)
	}
}

func getWarehouseHandler(service *application.AllocationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetWarehouseQuery{WarehouseID: c.Param("warehouseId")}

		warehouse, err := service.GetWarehouse(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, warehouse)
	}
}

func registerWarehouseStockHandler(service *application.AllocationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		warehouseID := c.Param("warehouseId")
		if err := middleware.GetValidator().Var(warehouseID, "warehouse_id"); err != nil {
			responder.RespondWithAppError(errors.ErrValidationWithFields("validation failed", map[string]string{
				"warehouseId": "must be a valid warehouse ID (alphanumeric, may contain . _ : -)",
			}))
			return
		}

		var req warehouseStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.RegisterWarehouseStockCommand{
			WarehouseID: warehouseID,
			Priority:    req.Priority,
			Stock:       toStockLines(req.Stock),
		}

		warehouse, err := service.RegisterWarehouseStock(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, warehouse)
	}
}

func removeWarehouseHandler(service *application.AllocationApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		cmd := application.RemoveWarehouseCommand{WarehouseID: c.Param("warehouseId")}
		if err := service.RemoveWarehouse(c.Request.Context(), cmd); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func (r allocationRequest) toCommand() application.AllocateCommand {
	cmd := application.AllocateCommand{
		AllocationID: r.AllocationID,
		OrderID:      r.OrderID,
		Lines:        make([]application.OrderLine, len(r.Lines)),
		WarehouseIDs: r.WarehouseIDs,
	}
	for i, l := range r.Lines {
		cmd.Lines[i] = application.OrderLine{SKU: l.SKU, Quantity: l.Quantity}
	}

	// nil keeps the stored inventory; an empty list is an empty inventory
	if r.Warehouses != nil {
		cmd.Warehouses = make([]application.WarehouseSnapshot, len(r.Warehouses))
		for i, w := range r.Warehouses {
			cmd.Warehouses[i] = application.WarehouseSnapshot{
				WarehouseID: w.WarehouseID,
				Stock:       toStockLines(w.Stock),
			}
		}
	}
	return cmd
}

func toStockLines(lines []lineRequest) []application.StockLine {
	out := make([]application.StockLine, len(lines))
	for i, l := range lines {
		out[i] = application.StockLine{SKU: l.SKU, Quantity: l.Quantity}
	}
	return out
}
