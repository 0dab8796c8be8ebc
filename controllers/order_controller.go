package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
)

// UpdateOrderRequest represents the request body for editing an order. Omitted fields are kept.
type UpdateOrderRequest struct {
	CustomerName        *string            `json:"customer_name"`
	CustomerPhone       *string            `json:"customer_phone"`
	CustomerEmail       *string            `json:"customer_email"`
	DiamondType         *enums.DiamondType `json:"diamond_type"`
	DiamondSize         *enums.DiamondSize `json:"diamond_size"`
	SpecialRequirements *string            `json:"special_requirements"`
	EstimatedCompletion *time.Time         `json:"estimated_completion"`
	Notes               *string            `json:"notes"`
}

func (r UpdateOrderRequest) toUpdate() store.OrderUpdate {
	return store.OrderUpdate{
		CustomerName:        r.CustomerName,
		CustomerPhone:       r.CustomerPhone,
		CustomerEmail:       r.CustomerEmail,
		DiamondType:         r.DiamondType,
		DiamondSize:         r.DiamondSize,
		SpecialRequirements: r.SpecialRequirements,
		EstimatedCompletion: r.EstimatedCompletion,
		Notes:               r.Notes,
	}
}

// CancelOrderRequest represents the request body for cancelling an order
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// NotifyRequest represents the request body for a customer notification
type NotifyRequest struct {
	Message string `json:"message"`
}

// CreateOrder handles POST /api/v1/admin/orders
func CreateOrder(c *gin.Context) {
	var req services.OrderData
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data", err)
		return
	}

	order, err := services.GetOrderService().CreateOrder(c.Request.Context(), req, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/admin/orders?page=&limit=&status=&search=
func ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := services.GetOrderService().ListOrders(c.Request.Context(), store.OrderFilter{
		Page:   page,
		Limit:  limit,
		Status: enums.OrderStatus(c.Query("status")),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// GetOrder handles GET /api/v1/admin/orders/:id
func GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := services.GetOrderService().GetOrder(c.Request.Context(), orderID, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, detail)
}

// UpdateOrder handles PATCH /api/v1/admin/orders/:id
func UpdateOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data", err)
		return
	}

	order, err := services.GetOrderService().UpdateOrder(c.Request.Context(), orderID, req.toUpdate(), middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/admin/orders/:id (soft delete)
func DeleteOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := services.GetOrderService().DeleteOrder(c.Request.Context(), orderID, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/admin/orders/:id/cancel
func CancelOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, "Invalid request data", err)
			return
		}
	}

	order, err := services.GetOrderService().CancelOrder(c.Request.Context(), orderID, req.Reason, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// GetOrderLogs handles GET /api/v1/admin/orders/:id/logs
func GetOrderLogs(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	logs, err := services.GetOrderService().OperationLogs(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, logs)
}

// GetStatistics handles GET /api/v1/admin/statistics
func GetStatistics(c *gin.Context) {
	stats, err := services.GetOrderService().Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// NotifyCustomer handles POST /api/v1/admin/orders/:id/notify
func NotifyCustomer(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req NotifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, "Invalid request data", err)
			return
		}
	}

	if err := services.GetOrderService().SendNotification(c.Request.Context(), orderID, req.Message, middleware.GetCaller(c)); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"order_id": orderID, "notified": true})
}

// PrintOrderSheet handles GET /api/v1/admin/orders/:id/sheet.pdf
func PrintOrderSheet(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	pdf, order, err := services.GetOrderService().PrintOrderSheet(c.Request.Context(), orderID, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, order.OrderNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
