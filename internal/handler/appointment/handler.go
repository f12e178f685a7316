// Package appointment exposes the booking endpoints.
package appointment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Create(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Update(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

// Reschedule moves the appointment to the next open slot; the server picks
// the slot, the client only names the appointment.
func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) List(c *gin.Context) {
	var filters model.AppointmentFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	appointments, total, err := h.service.List(c.Request.Context(), handler.Actor(c), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(appointments, filters.Pagination, total))
}

func (h *Handler) History(c *gin.Context) {
	var filters model.AppointmentFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	appointments, total, err := h.service.History(c.Request.Context(), handler.Actor(c), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(appointments, filters.Pagination, total))
}

// Day returns the full schedule for one date, today when unset.
func (h *Handler) Day(c *gin.Context) {
	appointments, day, err := h.service.Day(c.Request.Context(), c.Query("date"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"date":         day.Format("2006-01-02"),
		"appointments": appointments,
	}))
}

func (h *Handler) Calendar(c *gin.Context) {
	events, err := h.service.Calendar(c.Request.Context(), handler.Actor(c), c.Query("from"), c.Query("to"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

func (h *Handler) Upcoming(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	appointments, err := h.service.Upcoming(c.Request.Context(), handler.Actor(c), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

// Years lists the years that appear in the booking history, for the
// archive filter dropdown.
func (h *Handler) Years(c *gin.Context) {
	years, err := h.service.AvailableYears(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(years))
}
