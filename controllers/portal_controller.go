package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
)

// LookupOrders handles GET /api/v1/public/orders?phone=&order_number=
func LookupOrders(c *gin.Context) {
	orders, err := services.GetOrderService().LookupOrders(c.Request.Context(), c.Query("phone"), c.Query("order_number"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, orders)
}

// GetPublicOrder handles GET /api/v1/public/orders/:order_number
func GetPublicOrder(c *gin.Context) {
	view, err := services.GetOrderService().GetPublicOrder(c.Request.Context(), c.Param("order_number"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, view)
}
