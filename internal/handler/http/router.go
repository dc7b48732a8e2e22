package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the deployment settings the router needs
type RouterOptions struct {
	Env           string
	Version       string
	FrontendURL   string
	WebhookSecret string
	LogLevel      slog.Level
}

type Handlers struct {
	Auth       AuthHandler
	Punch      PunchHandler
	Attendance AttendanceHandler
	Absence    AbsenceHandler
	Employee   EmployeeHandler
	Event      EventHandler
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(opts.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       opts.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "biotime-attendance"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.FrontendURL},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.WebhookSecretHeader},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		r.Post("/auth/login", h.Auth.Login)

		// EventSource authenticates with a short-lived token in the query
		r.Get("/events", h.Event.Stream)

		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.WebhookSecret(opts.WebhookSecret))
			r.Post("/punches", h.Punch.Webhook)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Post("/auth/sse-token", h.Auth.SSEToken)

			r.Get("/punches", h.Punch.List)
			r.Get("/attendance", h.Attendance.List)
			r.Get("/attendance/summary", h.Attendance.Summary)
			r.Get("/absences", h.Absence.List)
			r.Get("/employees", h.Employee.ListEmployees)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Post("/punches/sync", h.Punch.Sync)
				r.Post("/absences/reconcile", h.Absence.Reconcile)
				r.Post("/employees/sync", h.Employee.SyncDirectory)
				r.Patch("/employees/{code}/exclusion", h.Employee.SetExclusion)
			})
		})
	})
	return r
}
