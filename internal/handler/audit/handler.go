// Package audit exposes the admin audit trail listing.
package audit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var filters model.AuditFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	verrs := apperrors.NewValidationErrors()
	filters.From = parseBound(c.Query("from"), false, verrs)
	filters.To = parseBound(c.Query("to"), true, verrs)
	if err := verrs.ErrIfAny(); err != nil {
		_ = c.Error(err)
		return
	}

	entries, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(entries, filters.Pagination, total))
}

// parseBound accepts a date or an RFC 3339 timestamp. A bare end date is
// pushed to the end of that day so the range includes it.
func parseBound(raw string, end bool, verrs *apperrors.ValidationErrors) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		field := "from"
		if end {
			field = "to"
		}
		verrs.Add(field, "Enter a valid date in YYYY-MM-DD format.")
		return nil
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return &t
}
