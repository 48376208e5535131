package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/pkg/apperrors"
)

// Placer admits new orders. It is declared here so the order package does not
// import the delivery package that composes it.
type Placer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Details, error)
}

type Handler struct {
	service Service
	placer  Placer
}

func NewHandler(service Service, placer Placer) *Handler {
	return &Handler{service: service, placer: placer}
}

// -------------------------------------------------------------------------------------------------
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Validation(c, err.Error())
		return
	}

	details, err := h.placer.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusCreated, details.Order)
}

// -------------------------------------------------------------------------------------------------
func (h *Handler) GetOrderDetails(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperrors.Validation(c, "invalid order id")
		return
	}

	details, err := h.service.GetDetails(c.Request.Context(), id)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// -------------------------------------------------------------------------------------------------
func (h *Handler) List(c *gin.Context) {
	var req ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apperrors.Validation(c, err.Error())
		return
	}

	orders, total, err := h.service.List(c.Request.Context(), req.Filter(), req.ListQuery)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	if orders == nil {
		orders = []*Order{}
	}

	if req.NoPaginate {
		c.JSON(http.StatusOK, orders)
		return
	}
	req.Normalize()
	c.JSON(http.StatusOK, common.Page[*Order]{Items: orders, Total: total, Limit: req.Limit, Offset: req.Offset})
}

// -------------------------------------------------------------------------------------------------
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutations ...gin.HandlerFunc) {
	orders := rg.Group("/orders")
	orders.GET("", h.List)
	orders.GET("/:id/details", h.GetOrderDetails)
	orders.Group("", mutations...).POST("", h.PlaceOrder)
}
