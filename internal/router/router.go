// Package router assembles the gin engine: the shared middleware stack and
// every route, with role gates applied where a whole route is reserved for
// staff. Finer scoping, like a patient seeing only their own chart, lives in
// the services.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appointmenthandler "github.com/clinovia/clinic-api/internal/handler/appointment"
	audithandler "github.com/clinovia/clinic-api/internal/handler/audit"
	authhandler "github.com/clinovia/clinic-api/internal/handler/auth"
	contacthandler "github.com/clinovia/clinic-api/internal/handler/contact"
	healthhandler "github.com/clinovia/clinic-api/internal/handler/health"
	medicalhandler "github.com/clinovia/clinic-api/internal/handler/medical"
	patienthandler "github.com/clinovia/clinic-api/internal/handler/patient"
	userhandler "github.com/clinovia/clinic-api/internal/handler/user"
	"github.com/clinovia/clinic-api/internal/middleware"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/pkg/auth"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/metrics"
)

type Config struct {
	RequestTimeout   time.Duration
	CORS             middleware.CORSConfig
	RateLimit        middleware.RateLimitConfig
	RateLimitEnabled bool
}

type Router struct {
	engine       *gin.Engine
	tokens       auth.JWTService
	healthH      *healthhandler.Handler
	authH        *authhandler.Handler
	userH        *userhandler.Handler
	patientH     *patienthandler.Handler
	appointmentH *appointmenthandler.Handler
	medicalH     *medicalhandler.Handler
	contactH     *contacthandler.Handler
	auditH       *audithandler.Handler
}

func NewRouter(
	log *logger.Logger,
	m *metrics.Metrics,
	tokens auth.JWTService,
	healthH *healthhandler.Handler,
	authH *authhandler.Handler,
	userH *userhandler.Handler,
	patientH *patienthandler.Handler,
	appointmentH *appointmenthandler.Handler,
	medicalH *medicalhandler.Handler,
	contactH *contacthandler.Handler,
	auditH *audithandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.CORS(config.CORS),
		middleware.ErrorHandler(log),
		middleware.Timeout(timeout),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.RateLimit(config.RateLimit))
	}

	return &Router{
		engine:       engine,
		tokens:       tokens,
		healthH:      healthH,
		authH:        authH,
		userH:        userH,
		patientH:     patientH,
		appointmentH: appointmentH,
		medicalH:     medicalH,
		contactH:     contactH,
		auditH:       auditH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(r.tokens))
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", r.authH.Login)
		auth.POST("/register", r.authH.Register)
		auth.POST("/refresh", r.authH.Refresh)
		auth.POST("/forgot-password", r.authH.ForgotPassword)
		auth.POST("/reset-password", r.authH.ResetPassword)
	}

	// The booking form needs the doctor directory and a way to reach the
	// clinic before an account exists.
	rg.GET("/doctors", r.userH.ListDoctors)
	rg.POST("/contact", r.contactH.Create)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.GET("/me", r.authH.Me)
		auth.POST("/change-password", r.authH.ChangePassword)
	}

	r.setupUserRoutes(rg)
	r.setupPatientRoutes(rg)
	r.setupAppointmentRoutes(rg)
	r.setupMedicalRoutes(rg)
	r.setupContactRoutes(rg)

	rg.GET("/audit-logs", middleware.RequireRole(model.RoleAdmin), r.auditH.List)
}

func (r *Router) setupUserRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users", middleware.RequireRole(model.RoleAdmin))
	{
		users.POST("", r.userH.Create)
		users.GET("", r.userH.List)
		users.GET("/:id", r.userH.Get)
		users.PUT("/:id", r.userH.Update)
		users.DELETE("/:id", r.userH.Deactivate)
	}
}

func (r *Router) setupPatientRoutes(rg *gin.RouterGroup) {
	frontDesk := middleware.RequireRole(model.RoleAdmin, model.RoleReceptionist)

	patients := rg.Group("/patients")
	{
		patients.POST("", frontDesk, r.patientH.Create)
		patients.GET("", r.patientH.List)
		patients.GET("/:id", r.patientH.Get)
		patients.PUT("/:id", frontDesk, r.patientH.Update)
		patients.DELETE("/:id", frontDesk, r.patientH.Deactivate)

		patients.GET("/:id/medical-records", r.medicalH.ListRecords)
		patients.GET("/:id/prescriptions", r.medicalH.ListPrescriptions)
	}
}

func (r *Router) setupAppointmentRoutes(rg *gin.RouterGroup) {
	frontDesk := middleware.RequireRole(model.RoleAdmin, model.RoleReceptionist)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleReceptionist, model.RoleDoctor)

	appointments := rg.Group("/appointments")
	{
		appointments.POST("", frontDesk, r.appointmentH.Create)
		appointments.GET("", r.appointmentH.List)
		appointments.GET("/history", r.appointmentH.History)
		appointments.GET("/day", staff, r.appointmentH.Day)
		appointments.GET("/calendar", r.appointmentH.Calendar)
		appointments.GET("/upcoming", r.appointmentH.Upcoming)
		appointments.GET("/years", staff, r.appointmentH.Years)
		appointments.GET("/:id", r.appointmentH.Get)
		appointments.PUT("/:id", frontDesk, r.appointmentH.Update)
		appointments.POST("/:id/cancel", frontDesk, r.appointmentH.Cancel)
		appointments.POST("/:id/complete", frontDesk, r.appointmentH.Complete)
		// Rescheduling is open to the appointment's own doctor and patient;
		// the service checks ownership.
		appointments.POST("/:id/reschedule", r.appointmentH.Reschedule)
	}
}

func (r *Router) setupMedicalRoutes(rg *gin.RouterGroup) {
	records := rg.Group("/medical-records")
	{
		records.POST("", r.medicalH.CreateRecord)
		records.GET("/:id", r.medicalH.GetRecord)
		records.PUT("/:id", r.medicalH.UpdateRecord)
		records.DELETE("/:id", r.medicalH.DeactivateRecord)
	}

	prescriptions := rg.Group("/prescriptions")
	{
		prescriptions.POST("", r.medicalH.CreatePrescription)
		prescriptions.GET("/:id", r.medicalH.GetPrescription)
	}
}

func (r *Router) setupContactRoutes(rg *gin.RouterGroup) {
	frontDesk := middleware.RequireRole(model.RoleAdmin, model.RoleReceptionist)

	queries := rg.Group("/contact-queries", frontDesk)
	{
		queries.GET("", r.contactH.List)
		queries.GET("/:id", r.contactH.Get)
		queries.POST("/:id/reply", r.contactH.Reply)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
