// Package patient exposes the patient registry endpoints.
package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/patient"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Create(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

// Deactivate soft-deletes; the record stays for history and audits.
func (h *Handler) Deactivate(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), handler.Actor(c), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) List(c *gin.Context) {
	var filters model.PatientFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	patients, total, err := h.service.List(c.Request.Context(), handler.Actor(c), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(patients, filters.Pagination, total))
}
