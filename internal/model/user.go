package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of actor roles. Every authorization decision
// switches over these four values; there is no dynamic role lookup.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

// ParseRole validates a wire value against the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleReceptionist:
		return RoleReceptionist, nil
	case RolePatient:
		return RolePatient, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanManageAppointments reports whether the role may create, edit, cancel or
// reschedule appointments on behalf of patients.
func (r Role) CanManageAppointments() bool {
	switch r {
	case RoleAdmin, RoleReceptionist:
		return true
	case RoleDoctor, RolePatient:
		return false
	default:
		return false
	}
}

// Specializations lists the accepted medical specialties for doctor profiles.
var Specializations = []string{
	"general",
	"cardiology",
	"dermatology",
	"pediatrics",
	"orthopedics",
	"neurology",
	"gynecology",
	"psychiatry",
	"ophthalmology",
	"ent",
	"dentistry",
	"radiology",
	"anesthesiology",
	"pathology",
	"surgery",
	"emergency",
	"oncology",
	"urology",
	"nephrology",
	"gastroenterology",
	"other",
}

// IsValidSpecialization reports whether s is in Specializations.
func IsValidSpecialization(s string) bool {
	for _, v := range Specializations {
		if v == s {
			return true
		}
	}
	return false
}

// User is a staff or patient account. Doctor-specific profile fields are nil
// for every other role.
type User struct {
	Base
	Email        string  `db:"email" json:"email"`
	PasswordHash string  `db:"password_hash" json:"-"`
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	Phone        *string `db:"phone" json:"phone,omitempty"`
	Address      *string `db:"address" json:"address,omitempty"`
	Role         Role    `db:"role" json:"role"`

	// Doctor profile
	Specialization     *string `db:"specialization" json:"specialization,omitempty"`
	RegistrationNumber *string `db:"registration_number" json:"registration_number,omitempty"`
	ExperienceYears    *int    `db:"experience_years" json:"experience_years,omitempty"`
	Bio                *string `db:"bio" json:"bio,omitempty"`

	IsActive    bool       `db:"is_active" json:"is_active"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

func (u *User) FullName() string {
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}

type CreateUserRequest struct {
	Email              string  `json:"email" binding:"required,email"`
	Password           string  `json:"password" binding:"required,min=8"`
	FirstName          string  `json:"first_name" binding:"required"`
	LastName           string  `json:"last_name" binding:"required"`
	Phone              *string `json:"phone"`
	Address            *string `json:"address"`
	Role               string  `json:"role" binding:"required,oneof=admin doctor receptionist patient"`
	Specialization     *string `json:"specialization"`
	RegistrationNumber *string `json:"registration_number"`
	ExperienceYears    *int    `json:"experience_years" binding:"omitempty,min=0,max=80"`
	Bio                *string `json:"bio"`
}

type UpdateUserRequest struct {
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Phone              *string `json:"phone"`
	Address            *string `json:"address"`
	Specialization     *string `json:"specialization"`
	RegistrationNumber *string `json:"registration_number"`
	ExperienceYears    *int    `json:"experience_years" binding:"omitempty,min=0,max=80"`
	Bio                *string `json:"bio"`
	IsActive           *bool   `json:"is_active"`
}

// Actor is the authenticated identity attached to a request. Patient-role
// actors map onto a Patient row by email.
type Actor struct {
	ID    uuid.UUID
	Email string
	Role  Role
}

// DoctorFilters narrows doctor directory listings.
type DoctorFilters struct {
	Specialization string `form:"specialization"`
	SearchTerm     string `form:"search"`
	Pagination
}

// Doctor is the public directory projection of a doctor account.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	Specialization  *string   `db:"specialization" json:"specialization,omitempty"`
	ExperienceYears *int      `db:"experience_years" json:"experience_years,omitempty"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
}
