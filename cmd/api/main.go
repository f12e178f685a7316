package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinovia/clinic-api/internal/config"
	"github.com/clinovia/clinic-api/internal/email"
	appointmentHandler "github.com/clinovia/clinic-api/internal/handler/appointment"
	auditHandler "github.com/clinovia/clinic-api/internal/handler/audit"
	authHandler "github.com/clinovia/clinic-api/internal/handler/auth"
	contactHandler "github.com/clinovia/clinic-api/internal/handler/contact"
	healthHandler "github.com/clinovia/clinic-api/internal/handler/health"
	medicalHandler "github.com/clinovia/clinic-api/internal/handler/medical"
	patientHandler "github.com/clinovia/clinic-api/internal/handler/patient"
	userHandler "github.com/clinovia/clinic-api/internal/handler/user"
	"github.com/clinovia/clinic-api/internal/middleware"
	"github.com/clinovia/clinic-api/internal/repository/postgres"
	"github.com/clinovia/clinic-api/internal/router"
	"github.com/clinovia/clinic-api/internal/scheduling"
	appointmentService "github.com/clinovia/clinic-api/internal/service/appointment"
	auditService "github.com/clinovia/clinic-api/internal/service/audit"
	authService "github.com/clinovia/clinic-api/internal/service/auth"
	contactService "github.com/clinovia/clinic-api/internal/service/contact"
	medicalService "github.com/clinovia/clinic-api/internal/service/medical"
	patientService "github.com/clinovia/clinic-api/internal/service/patient"
	userService "github.com/clinovia/clinic-api/internal/service/user"
	"github.com/clinovia/clinic-api/pkg/auth"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/metrics"
	"github.com/clinovia/clinic-api/pkg/security"
)

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

	engineCfg, err := cfg.Scheduling.ToEngineConfig()
	if err != nil {
		log.Fatal(err, "invalid scheduling configuration")
	}

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	otpRepo := postgres.NewOTPRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base, engineCfg.SlotMinutes, cfg.Scheduling.Timezone)
	medicalRepo := postgres.NewMedicalRecordRepository(base)
	prescriptionRepo := postgres.NewPrescriptionRepository(base)
	contactRepo := postgres.NewContactRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	engine, err := scheduling.NewEngine(engineCfg, appointmentRepo)
	if err != nil {
		log.Fatal(err, "failed to build scheduling engine")
	}

	tokens, err := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour,
	)
	if err != nil {
		log.Fatal(err, "failed to build token service")
	}

	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	encryptor, err := security.NewAESEncryptor([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		log.Fatal(err, "failed to build encryptor")
	}

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
	} else {
		sender = email.NewLogSender(log)
	}

	m := metrics.NewMetrics("clinic", "api")

	auditor := auditService.NewService(auditRepo, log)
	userSvc := userService.NewService(userRepo, hasher, auditor, log)
	patientSvc := patientService.NewService(patientRepo, outboxRepo, auditor, log)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, patientRepo, userRepo, outboxRepo, engine, auditor, m, log)
	authSvc := authService.NewService(userRepo, otpRepo, tokens, hasher, sender, auditor, log)
	medicalSvc := medicalService.NewService(
		medicalRepo, prescriptionRepo, patientRepo, encryptor, auditor, log)
	contactSvc := contactService.NewService(contactRepo, outboxRepo, sender, auditor, log)

	r := router.NewRouter(
		log,
		m,
		tokens,
		healthHandler.NewHandler(db),
		authHandler.NewHandler(authSvc),
		userHandler.NewHandler(userSvc),
		patientHandler.NewHandler(patientSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		medicalHandler.NewHandler(medicalSvc),
		contactHandler.NewHandler(contactSvc),
		auditHandler.NewHandler(auditor),
		router.Config{
			RequestTimeout: cfg.Server.RequestTimeout,
			CORS:           middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
				TTL:               10 * time.Minute,
			},
			RateLimitEnabled: cfg.RateLimit.Enabled,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "forced shutdown")
	}
	log.Info("server stopped")
}
