package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/metrics"
)

// otpRetention is how long spent or expired reset codes are kept before
// pruning. Codes stop being redeemable after their own TTL long before this.
const otpRetention = 24 * time.Hour

type CleanupConfig struct {
	Interval            time.Duration
	AuditRetentionDays  int
	OutboxRetentionDays int
}

func (c CleanupConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be greater than 0")
	}
	if c.OutboxRetentionDays <= 0 {
		return fmt.Errorf("outbox retention days must be greater than 0")
	}
	return nil
}

// CleanupWorker prunes rows past their retention window: audit logs,
// processed outbox events and password reset codes.
type CleanupWorker struct {
	audits  repository.AuditRepository
	outbox  repository.OutboxRepository
	otps    repository.OTPRepository
	config  CleanupConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCleanupWorker(
	audits repository.AuditRepository,
	outbox repository.OutboxRepository,
	otps repository.OTPRepository,
	config CleanupConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) (*CleanupWorker, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid cleanup config: %w", err)
	}

	return &CleanupWorker{
		audits:  audits,
		outbox:  outbox,
		otps:    otps,
		config:  config,
		logger:  logger,
		metrics: m,
	}, nil
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("starting cleanup worker",
		"audit_retention_days", w.config.AuditRetentionDays,
		"outbox_retention_days", w.config.OutboxRetentionDays)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down cleanup worker")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

// cleanup runs every prune pass; a failure in one does not stop the others.
func (w *CleanupWorker) cleanup(ctx context.Context) {
	now := time.Now()

	auditCutoff := now.AddDate(0, 0, -w.config.AuditRetentionDays)
	if rows, err := w.audits.DeleteBefore(ctx, auditCutoff); err != nil {
		w.observe("prune_audit_logs", err)
		w.logger.Error(err, "failed to prune audit logs")
	} else {
		w.observe("prune_audit_logs", nil)
		if rows > 0 {
			w.logger.Info("pruned audit logs", "rows", rows, "cutoff", auditCutoff.Format(time.RFC3339))
		}
	}

	outboxCutoff := now.AddDate(0, 0, -w.config.OutboxRetentionDays)
	if rows, err := w.outbox.DeleteProcessedBefore(ctx, outboxCutoff); err != nil {
		w.observe("prune_outbox_events", err)
		w.logger.Error(err, "failed to prune outbox events")
	} else {
		w.observe("prune_outbox_events", nil)
		if rows > 0 {
			w.logger.Info("pruned outbox events", "rows", rows, "cutoff", outboxCutoff.Format(time.RFC3339))
		}
	}

	otpCutoff := now.Add(-otpRetention)
	if rows, err := w.otps.DeleteExpiredBefore(ctx, otpCutoff); err != nil {
		w.observe("prune_reset_codes", err)
		w.logger.Error(err, "failed to prune password reset codes")
	} else {
		w.observe("prune_reset_codes", nil)
		if rows > 0 {
			w.logger.Info("pruned password reset codes", "rows", rows)
		}
	}
}

func (w *CleanupWorker) observe(operation string, err error) {
	if w.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	w.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
}
