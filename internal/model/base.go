package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// DefaultPageSize matches the listing endpoints' page length.
const DefaultPageSize = 25

// Normalize clamps pagination to sane bounds.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = DefaultPageSize
	}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
