package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/report"
	"cafe-service/internal/service"
	"cafe-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const userHeader = "X-User-ID"

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, basketID int64) (*service.OrderResult, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
}

type BasketEditor interface {
	EditItem(ctx context.Context, userID, productID int64, delta int) (*service.BasketEditResult, error)
	ActiveBasket(ctx context.Context, userID int64) (*service.BasketView, error)
}

type ShipmentReceiver interface {
	Receive(ctx context.Context, req service.ReceiveShipmentRequest) (*models.Shipment, error)
}

type Catalog interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Products(ctx context.Context, categorySlug string) (*service.ProductListing, error)
}

type RevenueReporter interface {
	Revenue(ctx context.Context, from, to time.Time) (*service.RevenueReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the HTTP layer dispatches to.
// Readiness and ErrorLog may be nil.
type Services struct {
	Orders    OrderPlacer
	Baskets   BasketEditor
	Shipments ShipmentReceiver
	Catalog   Catalog
	Reports   RevenueReporter
	Readiness Pinger
	ErrorLog  ErrorRecorder
}

// Handler contains HTTP handlers
type Handler struct {
	svc Services
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) error {
	if err := registerValidators(); err != nil {
		return err
	}

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	if h.svc.ErrorLog != nil {
		router.Use(errorLogMiddleware(h.svc.ErrorLog))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", h.listCategories)
		v1.GET("/products", h.listProducts)

		v1.GET("/basket", h.getBasket)
		v1.POST("/basket/items", h.editBasket)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)

		v1.POST("/shipments", h.receiveShipment)

		v1.GET("/reports/revenue", h.revenueReport)
		v1.GET("/reports/revenue/export", h.exportRevenueReport)
	}
	return nil
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.svc.Readiness != nil {
		if err := h.svc.Readiness.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.svc.Catalog.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) listProducts(c *gin.Context) {
	listing, err := h.svc.Catalog.Products(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) getBasket(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	basket, err := h.svc.Baskets.ActiveBasket(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

type editBasketRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Count     int   `json:"count" binding:"required"`
}

// editBasket adds a signed count of a product to the user's active basket
func (h *Handler) editBasket(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req editBasketRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Baskets.EditItem(c.Request.Context(), userID, req.ProductID, req.Count)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type placeOrderRequest struct {
	BasketID int64 `json:"basket_id" binding:"omitempty,gt=0"`
}

// placeOrder checks out the given basket, or the user's active basket when
// none is named
func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	basketID := req.BasketID
	if basketID == 0 {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		basket, err := h.svc.Baskets.ActiveBasket(ctx, userID)
		if err != nil {
			h.fail(c, err)
			return
		}
		basketID = basket.BasketID
	}

	result, err := h.svc.Orders.PlaceOrder(ctx, basketID)
	if err != nil {
		h.fail(c, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeBasketNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"error":     string(service.OutcomeBasketNotFound),
			"basket_id": basketID,
		})
	case service.OutcomeAlreadyPlaced:
		c.JSON(http.StatusOK, result)
	default:
		c.JSON(http.StatusCreated, result)
	}
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type receiveShipmentRequest struct {
	IngredientID int64           `json:"ingredient_id" binding:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Price        decimal.Decimal `json:"price" binding:"gte=0"`
	ShelfLife    time.Time       `json:"shelf_life"`
}

func (h *Handler) receiveShipment(c *gin.Context) {
	var req receiveShipmentRequest
	if !bindJSON(c, &req) {
		return
	}

	shipment, err := h.svc.Shipments.Receive(c.Request.Context(), service.ReceiveShipmentRequest{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Price:        req.Price,
		ShelfLife:    req.ShelfLife,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

func (h *Handler) revenueReport(c *gin.Context) {
	r, ok := h.loadRevenue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) exportRevenueReport(c *gin.Context) {
	r, ok := h.loadRevenue(c)
	if !ok {
		return
	}

	c.Header("Content-Type", report.ContentType)
	c.Header("Content-Disposition", "attachment; filename="+report.Filename(r))
	c.Status(http.StatusOK)
	if err := report.WriteRevenue(c.Writer, r); err != nil {
		_ = c.Error(err)
	}
}

// loadRevenue builds the report of [from, to) given as dates. Without
// parameters it covers the last 30 days including today.
func (h *Handler) loadRevenue(c *gin.Context) (*service.RevenueReport, bool) {
	to := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -30)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			badDate(c, "from")
			return nil, false
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			badDate(c, "to")
			return nil, false
		}
	}

	r, err := h.svc.Reports.Revenue(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return r, true
}

const dateLayout = "2006-01-02"

func badDate(c *gin.Context, param string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid date",
		"details": param + " must be formatted as " + dateLayout,
	})
}

// requireUser reads the caller's id from the X-User-ID header
func requireUser(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.GetHeader(userHeader), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing or invalid " + userHeader + " header",
		})
		return 0, false
	}
	return userID, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		body := gin.H{"error": "Invalid request body"}
		if fields := validationErrors(err); fields != nil {
			body["fields"] = fields
		} else {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusBadRequest, body)
		return false
	}
	return true
}

// fail maps service errors to HTTP responses
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		status, message = http.StatusNotFound, "Product not found"
	case errors.Is(err, service.ErrIngredientNotFound):
		status, message = http.StatusNotFound, "Ingredient not found"
	case errors.Is(err, service.ErrOrderNotFound):
		status, message = http.StatusNotFound, "Order not found"
	case errors.Is(err, service.ErrInvalidCount),
		errors.Is(err, service.ErrInvalidShipment),
		errors.Is(err, service.ErrInvalidPeriod):
		status, message = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, service.ErrCheckoutInProgress):
		status, message = http.StatusConflict, "Checkout already in progress"
	case errors.Is(err, service.ErrInsufficientStock):
		status, message = http.StatusConflict, "Insufficient stock"
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
