package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

const outboxInsert = `
	INSERT INTO outbox_events (
		id, event_type, payload, status, retry_count, created_at, updated_at
	) VALUES ($1, $2, $3, $4, 0, $5, $6)
`

func prepareOutboxEvent(event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.Status = model.OutboxStatusPending
	return nil
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if err := prepareOutboxEvent(event); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, outboxInsert,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// CreateTx writes the event inside the caller's transaction, so the event is
// only visible once the state change it announces commits.
func (r *outboxRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	if err := prepareOutboxEvent(event); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, outboxInsert,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents returns the oldest undelivered events. RETRY rows are the
// manual requeue path: flipping a FAILED row back to RETRY re-enters it here
// once its retry_at passes.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT * FROM outbox_events
		WHERE status IN ($1, $2)
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $3
	`

	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query,
		model.OutboxStatusPending, model.OutboxStatusRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = CASE WHEN $1 = 'FAILED' THEN retry_count + 1 ELSE retry_count END,
			processed_at = CASE WHEN $1 = 'PROCESSED' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update event status: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`

	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
