package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/messaging"
	"github.com/clinovia/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be greater than 0")
	}
	return nil
}

// OutboxProcessor polls pending outbox rows and relays them to the broker.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: m,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessPending(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox events")
			}
		}
	}
}

// ProcessPending drains one batch of pending events.
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func(attempt int) error {
		if attempt > 0 {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		return p.broker.Publish(ctx, "events", messaging.Message{
			Type:    event.EventType,
			Payload: event.Payload,
		})
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		errStr := err.Error()
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr); updateErr != nil {
			p.logger.Error(updateErr, "failed to mark event failed", "event_id", event.ID.String())
		}
		return err
	}

	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
		p.logger.Error(err, "failed to mark event processed", "event_id", event.ID.String())
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	return nil
}

func retry(attempts int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
