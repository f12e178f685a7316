package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate     = "create"
	AuditActionView       = "view"
	AuditActionUpdate     = "update"
	AuditActionCancel     = "cancel"
	AuditActionComplete   = "complete"
	AuditActionReschedule = "reschedule"
	AuditActionDeactivate = "deactivate"
	AuditActionLogin      = "login"
	AuditActionReply      = "reply"

	// Entity types
	AuditEntityUser          = "user"
	AuditEntityPatient       = "patient"
	AuditEntityAppointment   = "appointment"
	AuditEntityMedicalRecord = "medical_record"
	AuditEntityPrescription  = "prescription"
	AuditEntityContactQuery  = "contact_query"
)

// AuditFilters narrows audit log listings.
type AuditFilters struct {
	ActorID    *uuid.UUID `form:"-"`
	EntityType string     `form:"entity_type"`
	Action     string     `form:"action"`
	From       *time.Time `form:"-"`
	To         *time.Time `form:"-"`
	Pagination
}
