package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinovia/clinic-api/internal/config"
	"github.com/clinovia/clinic-api/internal/repository/postgres"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/messaging/redis"
	"github.com/clinovia/clinic-api/pkg/metrics"
	"github.com/clinovia/clinic-api/pkg/worker"
)

const opsAddr = ":8081"

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}
	log = logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	otpRepo := postgres.NewOTPRepository(base)

	m := metrics.NewMetrics("clinic", "worker")

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), log, m)
	if err != nil {
		log.Fatal(err, "failed to build outbox processor")
	}
	cleaner, err := worker.NewCleanupWorker(auditRepo, outboxRepo, otpRepo, cfg.ToCleanupConfig(), log, m)
	if err != nil {
		log.Fatal(err, "failed to build cleanup worker")
	}

	startOpsServer(db, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down workers")
		cancel()
	}()

	go cleaner.Start(ctx)
	processor.Start(ctx)
}

// startOpsServer exposes liveness, readiness and metrics for the worker
// process on its own port.
func startOpsServer(db *sqlx.DB, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(opsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Error(err, "ops server failed")
		}
	}()
}
