package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patient is a clinic patient record. Deleting one is a soft operation:
// the row is flagged inactive and appointments keep their history with the
// patient reference cleared.
type Patient struct {
	Base
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Email       string    `db:"email" json:"email"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
}

func (p *Patient) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

type CreatePatientRequest struct {
	FirstName   string  `json:"first_name" binding:"required,max=50"`
	LastName    string  `json:"last_name" binding:"required,max=50"`
	Email       string  `json:"email" binding:"required,email"`
	DateOfBirth string  `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
	Phone       *string `json:"phone" binding:"omitempty,max=15"`
	Address     *string `json:"address"`
}

type UpdatePatientRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,max=50"`
	LastName    *string `json:"last_name" binding:"omitempty,max=50"`
	Email       *string `json:"email" binding:"omitempty,email"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Phone       *string `json:"phone" binding:"omitempty,max=15"`
	Address     *string `json:"address"`
}

// PatientFilters narrows patient listings. DoctorID scopes the list to
// patients who have an appointment with that doctor.
type PatientFilters struct {
	SearchTerm string     `form:"q"`
	DoctorID   *uuid.UUID `form:"-"`
	Pagination
}
