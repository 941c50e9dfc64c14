package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/middleware"
)

// ReconciliationService is the application surface the handlers drive
type ReconciliationService interface {
	RecordPurchaseOrder(ctx context.Context, cmd application.RecordPurchaseOrderCommand) (*application.SyncResultDTO, error)
	SyncPurchaseOrder(ctx context.Context, cmd application.SyncPurchaseOrderCommand) (*application.SyncResultDTO, error)
	BackfillTransit(ctx context.Context, cmd application.BackfillTransitCommand) (*application.BackfillResultDTO, error)
	ReceiveStock(ctx context.Context, cmd application.ReceiveStockCommand) (*application.ReceiveResultDTO, error)
	AddBarcode(ctx context.Context, cmd application.AddBarcodeCommand) (*application.BarcodeResultDTO, error)
	Snapshot(ctx context.Context) ([]application.SnapshotEntryDTO, error)
	GetProduct(ctx context.Context, productID string) (*application.ProductDTO, error)
	ListTransit(ctx context.Context, productID string) ([]application.TransitDTO, error)
	ListPurchaseOrders(ctx context.Context) ([]application.PurchaseOrderDTO, error)
}

// ReconciliationHandler serves the reconciliation HTTP API
type ReconciliationHandler struct {
	service ReconciliationService
	logger  *logging.Logger
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(service ReconciliationService, logger *logging.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		service: service,
		logger:  logger.WithComponent("reconciliation-handler"),
	}
}

// RegisterRoutes registers the reconciliation routes on the router
func (h *ReconciliationHandler) RegisterRoutes(router *gin.RouterGroup) {
	purchaseOrders := router.Group("/purchase-orders")
	{
		purchaseOrders.POST("", h.RecordPurchaseOrder)
		purchaseOrders.GET("", h.ListPurchaseOrders)
		purchaseOrders.POST("/:purchaseOrderId/sync", h.SyncPurchaseOrder)
	}

	products := router.Group("/products")
	{
		products.GET("/:productId", h.GetProduct)
		products.GET("/:productId/transit", h.ListTransit)
		products.POST("/:productId/receive", h.ReceiveStock)
		products.POST("/:productId/barcodes", h.AddBarcode)
	}

	router.GET("/inventory", h.Snapshot)
	router.POST("/backfill", h.BackfillTransit)
}

type purchaseOrderLineRequest struct {
	LineID      string  `json:"lineId"`
	Description string  `json:"description"`
	SupplierSKU string  `json:"supplierSku"`
	Quantity    float64 `json:"quantity"`
	UnitCostGBP float64 `json:"unitCostGBP"`
}

type recordPurchaseOrderRequest struct {
	PurchaseOrderID string                     `json:"purchaseOrderId" binding:"required,not_blank"`
	SupplierID      string                     `json:"supplierId" binding:"required,not_blank"`
	SupplierName    string                     `json:"supplierName"`
	Reference       string                     `json:"reference"`
	OrderedAt       *time.Time                 `json:"orderedAt"`
	Lines           []purchaseOrderLineRequest `json:"lines"`
}

type receiveRequest struct {
	Quantity *float64 `json:"quantity" binding:"required"`
}

type addBarcodeRequest struct {
	Barcode string `json:"barcode" binding:"required,barcode"`
}

// RecordPurchaseOrder handles POST /purchase-orders
func (h *ReconciliationHandler) RecordPurchaseOrder(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req recordPurchaseOrderRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"purchase_order.id": req.PurchaseOrderID,
		"supplier.id":       req.SupplierID,
		"lines":             len(req.Lines),
	})

	lines := make([]application.PurchaseOrderLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = application.PurchaseOrderLineInput(l)
	}

	result, err := h.service.RecordPurchaseOrder(c.Request.Context(), application.RecordPurchaseOrderCommand{
		PurchaseOrderID: req.PurchaseOrderID,
		SupplierID:      req.SupplierID,
		SupplierName:    req.SupplierName,
		Reference:       req.Reference,
		OrderedAt:       req.OrderedAt,
		Lines:           lines,
		Source:          "api",
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	status := http.StatusCreated
	if result.AlreadySynced {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// ListPurchaseOrders handles GET /purchase-orders
func (h *ReconciliationHandler) ListPurchaseOrders(c *gin.Context) {
	orders, err := h.service.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// SyncPurchaseOrder handles POST /purchase-orders/:purchaseOrderId/sync.
// Every call creates transit records unless force=false.
func (h *ReconciliationHandler) SyncPurchaseOrder(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	purchaseOrderID := c.Param("purchaseOrderId")

	force := true
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			responder.RespondBadRequest("force must be a boolean")
			return
		}
		force = parsed
	}

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"purchase_order.id": purchaseOrderID,
		"force":             force,
	})

	result, err := h.service.SyncPurchaseOrder(c.Request.Context(), application.SyncPurchaseOrderCommand{
		PurchaseOrderID: purchaseOrderID,
		Force:           force,
		Source:          "api",
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProduct handles GET /products/:productId
func (h *ReconciliationHandler) GetProduct(c *gin.Context) {
	product, err := h.service.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ListTransit handles GET /products/:productId/transit
func (h *ReconciliationHandler) ListTransit(c *gin.Context) {
	records, err := h.service.ListTransit(c.Request.Context(), c.Param("productId"))
	if err != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ReceiveStock handles POST /products/:productId/receive
func (h *ReconciliationHandler) ReceiveStock(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	productID := c.Param("productId")

	var req receiveRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"product.id": productID,
		"quantity":   *req.Quantity,
	})

	result, err := h.service.ReceiveStock(c.Request.Context(), application.ReceiveStockCommand{
		ProductID: productID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AddBarcode handles POST /products/:productId/barcodes
func (h *ReconciliationHandler) AddBarcode(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)
	productID := c.Param("productId")

	var req addBarcodeRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	middleware.AddSpanAttributes(c, map[string]interface{}{"product.id": productID})

	result, err := h.service.AddBarcode(c.Request.Context(), application.AddBarcodeCommand{
		ProductID: productID,
		Barcode:   req.Barcode,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Snapshot handles GET /inventory
func (h *ReconciliationHandler) Snapshot(c *gin.Context) {
	entries, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// BackfillTransit handles POST /backfill
func (h *ReconciliationHandler) BackfillTransit(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			responder.RespondWithAppError(errors.ErrValidationWithFields("invalid query", map[string]string{"limit": "must be a non-negative integer"}))
			return
		}
		limit = parsed
	}

	result, err := h.service.BackfillTransit(c.Request.Context(), application.BackfillTransitCommand{Limit: limit})
	if err != nil {
		responder.RespondWithError(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
