package drone

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/pkg/apperrors"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListDronesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apperrors.Validation(c, err.Error())
		return
	}

	drones, total, err := h.service.List(c.Request.Context(), req.Filter(), req.ListQuery)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	if drones == nil {
		drones = []*Drone{}
	}

	if req.NoPaginate {
		c.JSON(http.StatusOK, drones)
		return
	}
	req.Normalize()
	c.JSON(http.StatusOK, common.Page[*Drone]{Items: drones, Total: total, Limit: req.Limit, Offset: req.Offset})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDroneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Validation(c, err.Error())
		return
	}

	d, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := droneID(c)
	if !ok {
		return
	}

	d, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Load(c *gin.Context) {
	h.act(c, h.service.Load)
}

func (h *Handler) Unload(c *gin.Context) {
	h.act(c, h.service.Unload)
}

func (h *Handler) MakeReady(c *gin.Context) {
	h.act(c, h.service.MakeReady)
}

func (h *Handler) act(c *gin.Context, action func(ctx context.Context, id uuid.UUID) (*Drone, error)) {
	id, ok := droneID(c)
	if !ok {
		return
	}

	d, err := action(c.Request.Context(), id)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func droneID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperrors.Validation(c, "invalid drone id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutations ...gin.HandlerFunc) {
	drones := rg.Group("/drones")
	drones.GET("", h.List)
	drones.GET("/:id", h.GetByID)

	writes := drones.Group("", mutations...)
	writes.POST("", h.Create)
	writes.POST("/:id/load", h.Load)
	writes.POST("/:id/unload", h.Unload)
	writes.POST("/:id/ready", h.MakeReady)
}
