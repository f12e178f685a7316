// Package medical exposes clinical notes and prescriptions.
package medical

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/medical"
)

type Handler struct {
	service *medical.Service
}

func NewHandler(service *medical.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateRecord(c *gin.Context) {
	var req model.CreateMedicalRecordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	record, err := h.service.CreateRecord(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(record))
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	record, err := h.service.GetRecord(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) UpdateRecord(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateMedicalRecordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	record, err := h.service.UpdateRecord(c.Request.Context(), handler.Actor(c), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) DeactivateRecord(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateRecord(c.Request.Context(), handler.Actor(c), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// ListRecords pages one patient's chart; the patient id rides in the path.
func (h *Handler) ListRecords(c *gin.Context) {
	patientID, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}

	records, total, err := h.service.ListRecords(c.Request.Context(), handler.Actor(c), patientID, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	p.Normalize()
	c.JSON(http.StatusOK, handler.NewListResponse(records, p, total))
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	var req model.CreatePrescriptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	prescription, err := h.service.CreatePrescription(c.Request.Context(), handler.Actor(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(prescription))
}

func (h *Handler) GetPrescription(c *gin.Context) {
	id, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}

	prescription, err := h.service.GetPrescription(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(prescription))
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	patientID, ok := handler.IDParam(c, "id")
	if !ok {
		return
	}
	var p model.Pagination
	if !handler.BindQuery(c, &p) {
		return
	}

	prescriptions, total, err := h.service.ListPrescriptions(c.Request.Context(), handler.Actor(c), patientID, p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	p.Normalize()
	c.JSON(http.StatusOK, handler.NewListResponse(prescriptions, p, total))
}
