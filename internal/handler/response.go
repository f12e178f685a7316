package handler

import (
	"github.com/clinovia/clinic-api/internal/model"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  string              `json:"status"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Meta    *PageMeta           `json:"meta,omitempty"`
}

// PageMeta accompanies list responses.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewListResponse(data interface{}, p model.Pagination, total int) *Response {
	return &Response{
		Status: "success",
		Data:   data,
		Meta: &PageMeta{
			Page:     p.Page,
			PageSize: p.PageSize,
			Total:    total,
		},
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewValidationResponse reports user-correctable input problems keyed by
// field name.
func NewValidationResponse(fields map[string][]string) *Response {
	return &Response{
		Status:  "error",
		Message: "Validation failed.",
		Errors:  fields,
	}
}
