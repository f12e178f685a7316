// Package contact handles messages submitted through the public contact
// form and the staff reply flow.
package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/email"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
)

const (
	msgEmptyMessage   = "Message cannot be empty."
	msgEmptyReply     = "Reply cannot be empty."
	msgAlreadyReplied = "This query has already been replied to."
	msgBadStatus      = "Select a valid status."
)

type Service struct {
	repo    repository.ContactRepository
	outbox  repository.OutboxRepository
	sender  email.Sender
	auditor *audit.Service
	logger  *logger.Logger
}

func NewService(
	repo repository.ContactRepository,
	outbox repository.OutboxRepository,
	sender email.Sender,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:    repo,
		outbox:  outbox,
		sender:  sender,
		auditor: auditor,
		logger:  logger,
	}
}

// Create stores a query from the public form. There is no actor; the form
// is reachable without a login.
func (s *Service) Create(ctx context.Context, req *model.CreateContactQueryRequest) (*model.ContactQuery, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		verrs := apperrors.NewValidationErrors()
		verrs.Add("message", msgEmptyMessage)
		return nil, verrs
	}

	query := &model.ContactQuery{
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.TrimSpace(req.Email),
		Phone:    req.Phone,
		Message:  message,
	}

	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, query); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, model.EventContactQueryReceived, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create contact query: %w", err)
	}

	s.logger.Info("contact query received", "query_id", query.ID)
	return query, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.ContactQuery, error) {
	return s.repo.Get(ctx, id)
}

// List pages queries for the staff inbox, optionally narrowed by status.
func (s *Service) List(ctx context.Context, status string, p model.Pagination) ([]*model.ContactQuery, int, error) {
	var filter model.ContactStatus
	switch status {
	case "":
	case string(model.ContactStatusNew):
		filter = model.ContactStatusNew
	case string(model.ContactStatusReplied):
		filter = model.ContactStatusReplied
	default:
		verrs := apperrors.NewValidationErrors()
		verrs.Add("status", msgBadStatus)
		return nil, 0, verrs
	}

	p.Normalize()
	return s.repo.List(ctx, filter, p)
}

// Reply records the staff answer and emails it to the sender. Each query
// takes exactly one reply; the stored text is the source of truth and the
// email is best-effort.
func (s *Service) Reply(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.ReplyContactQueryRequest) (*model.ContactQuery, error) {
	query, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	verrs := apperrors.NewValidationErrors()
	if query.Status == model.ContactStatusReplied {
		verrs.AddNonField(msgAlreadyReplied)
	}
	reply := strings.TrimSpace(req.ReplyMessage)
	if reply == "" {
		verrs.Add("reply_message", msgEmptyReply)
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	if err := s.repo.Reply(ctx, id, reply); err != nil {
		return nil, fmt.Errorf("failed to reply to contact query: %w", err)
	}
	query.ReplyMessage = &reply
	query.Status = model.ContactStatusReplied

	if err := s.sender.SendContactReply(ctx, query.Email, reply); err != nil {
		s.logger.Warn("failed to send contact reply email",
			"query_id", id, "error", err.Error())
	}

	s.logger.Info("contact query replied", "query_id", id, "actor_id", actor.ID)
	s.auditor.Record(ctx, actor, model.AuditActionReply, model.AuditEntityContactQuery, id, nil)
	return query, nil
}

func (s *Service) appendEvent(ctx context.Context, tx *sqlx.Tx, eventType string, query *model.ContactQuery) error {
	payload, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := s.outbox.CreateTx(ctx, tx, &model.OutboxEvent{EventType: eventType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}
