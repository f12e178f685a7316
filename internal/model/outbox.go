package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
	OutboxStatusRetry     OutboxStatus = "RETRY"
)

// Event types appended by the services.
const (
	EventAppointmentCreated     = "appointment.created"
	EventAppointmentUpdated     = "appointment.updated"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventPatientCreated         = "patient.created"
	EventPatientUpdated         = "patient.updated"
	EventPatientDeactivated     = "patient.deactivated"
	EventContactQueryReceived   = "contact.received"
)

// OutboxEvent is written in the same transaction as the state change it
// announces and relayed to the broker by the outbox worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
