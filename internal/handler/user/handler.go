// Package user exposes staff account administration and the public doctor
// directory.
package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/user"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.service.Create(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(u))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.service.Update(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

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
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}

	users, total, err := h.service.List(c.Request.Context(), c.Query("role"), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	p.Normalize()
	c.JSON(http.StatusOK, handler.NewListResponse(users, p, total))
}

// ListDoctors serves the public directory used by the booking form.
func (h *Handler) ListDoctors(c *gin.Context) {
	var filters model.DoctorFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	doctors, total, err := h.service.ListDoctors(c.Request.Context(), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(doctors, filters.Pagination, total))
}
