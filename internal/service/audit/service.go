package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/pkg/logger"
)

type contextKey string

const clientIPKey contextKey = "audit-client-ip"

// WithClientIP stashes the request's client address so Record can attach it
// without depending on the transport layer.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Service writes the audit trail. Entries are recorded after the audited
// change commits; a failed write is logged, never propagated, so auditing
// can not undo clinical state.
type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends one entry. changes, when non-nil, is stored as its JSON
// encoding.
func (s *Service) Record(ctx context.Context, actor *model.Actor, action, entityType string, entityID uuid.UUID, changes interface{}) {
	entry := &model.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  clientIP(ctx),
	}
	if actor != nil {
		actorID := actor.ID
		entry.ActorID = &actorID
	}
	if changes != nil {
		payload, err := json.Marshal(changes)
		if err != nil {
			s.logger.Warn("failed to encode audit changes",
				"action", action, "entity_type", entityType, "error", err.Error())
		} else {
			entry.Changes = payload
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit entry",
			"action", action, "entity_type", entityType,
			"entity_id", entityID.String(), "error", err.Error())
	}
}

// List exposes the trail to the admin endpoint.
func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error) {
	if filters == nil {
		filters = &model.AuditFilters{}
	}
	filters.Normalize()

	entries, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, total, nil
}
