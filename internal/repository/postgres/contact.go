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

type contactRepository struct {
	BaseRepository
}

func NewContactRepository(base BaseRepository) repository.ContactRepository {
	return &contactRepository{base}
}

func (r *contactRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, query *model.ContactQuery) error {
	stmt := `
		INSERT INTO contact_queries (
			id, full_name, email, phone, message, reply_message,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}
	now := time.Now()
	query.CreatedAt = now
	query.UpdatedAt = now
	query.Status = model.ContactStatusNew

	_, err := tx.ExecContext(ctx, stmt,
		query.ID,
		query.FullName,
		query.Email,
		query.Phone,
		query.Message,
		query.ReplyMessage,
		query.Status,
		query.CreatedAt,
		query.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact query: %w", translateError(err))
	}
	return nil
}

func (r *contactRepository) Get(ctx context.Context, id uuid.UUID) (*model.ContactQuery, error) {
	query := `SELECT * FROM contact_queries WHERE id = $1`

	var contact model.ContactQuery
	if err := r.db.GetContext(ctx, &contact, query, id); err != nil {
		return nil, fmt.Errorf("failed to get contact query: %w", translateError(err))
	}
	return &contact, nil
}

func (r *contactRepository) List(ctx context.Context, status model.ContactStatus, p model.Pagination) ([]*model.ContactQuery, int, error) {
	where := ""
	args := []interface{}{}
	argCount := 1

	if status != "" {
		where = fmt.Sprintf(" WHERE status = $%d", argCount)
		args = append(args, status)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM contact_queries"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count contact queries: %w", err)
	}

	query := "SELECT * FROM contact_queries" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, p.PageSize, p.Offset())

	var contacts []*model.ContactQuery
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list contact queries: %w", err)
	}
	return contacts, total, nil
}

func (r *contactRepository) Reply(ctx context.Context, id uuid.UUID, replyMessage string) error {
	query := `
		UPDATE contact_queries
		SET reply_message = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, replyMessage, model.ContactStatusReplied, id)
	if err != nil {
		return fmt.Errorf("failed to reply to contact query: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to reply to contact query: %w", repository.ErrNotFound)
	}
	return nil
}
