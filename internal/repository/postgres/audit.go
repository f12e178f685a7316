package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, action, entity_type, entity_id,
			changes, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Changes,
		entry.IPAddress,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error) {
	where := " WHERE TRUE"
	args := []interface{}{}
	argCount := 1

	if filters.ActorID != nil {
		where += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, *filters.ActorID)
		argCount++
	}
	if filters.EntityType != "" {
		where += fmt.Sprintf(" AND entity_type = $%d", argCount)
		args = append(args, filters.EntityType)
		argCount++
	}
	if filters.Action != "" {
		where += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, filters.Action)
		argCount++
	}
	if filters.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filters.From)
		argCount++
	}
	if filters.To != nil {
		where += fmt.Sprintf(" AND created_at < $%d", argCount)
		args = append(args, *filters.To)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := "SELECT * FROM audit_logs" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var entries []*model.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, total, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}
	return result.RowsAffected()
}
