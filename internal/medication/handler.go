package medication

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/pkg/apperrors"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	RegisterValidators()
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateMedicationRequest
	if err := c.ShouldBind(&req); err != nil {
		apperrors.Validation(c, bindMessage(err))
		return
	}

	m, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) List(c *gin.Context) {
	var req ListMedicationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apperrors.Validation(c, err.Error())
		return
	}

	meds, total, err := h.service.List(c.Request.Context(), req.Filter(), req.ListQuery)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	if meds == nil {
		meds = []*Medication{}
	}

	if req.NoPaginate {
		c.JSON(http.StatusOK, meds)
		return
	}
	req.Normalize()
	c.JSON(http.StatusOK, common.Page[*Medication]{Items: meds, Total: total, Limit: req.Limit, Offset: req.Offset})
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperrors.Validation(c, "invalid medication id")
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		apperrors.ToHTTPError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutations ...gin.HandlerFunc) {
	meds := rg.Group("/medications")
	meds.GET("", h.List)
	meds.GET("/:id", h.GetByID)
	meds.Group("", mutations...).POST("", h.Create)
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "medname" {
				return NameRule
			}
		}
	}
	return err.Error()
}
