// Package contact exposes the public contact form and the staff inbox.
package contact

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/contact"
)

type Handler struct {
	service *contact.Service
}

func NewHandler(service *contact.Service) *Handler {
	return &Handler{service: service}
}

// Create accepts a message from the public site; no login required.
func (h *Handler) Create(c *gin.Context) {
	var req model.CreateContactQueryRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	query, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, &handler.Response{
		Status:  "success",
		Message: "Thanks for reaching out. We will get back to you soon.",
		Data:    query,
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	query, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(query))
}

func (h *Handler) List(c *gin.Context) {
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}

	queries, total, err := h.service.List(c.Request.Context(), c.Query("status"), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	p.Normalize()
	c.JSON(http.StatusOK, handler.NewListResponse(queries, p, total))
}

func (h *Handler) Reply(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var req model.ReplyContactQueryRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	query, err := h.service.Reply(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(query))
}
