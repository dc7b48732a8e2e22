package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/config"
	appHTTP "github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/cron"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/sse"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/repository/postgresql"
	absenceService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/absence"
	attendanceService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/attendance"
	serviceAuth "github.com/cmlabs-hris/biotime-attendance-go/internal/service/auth"
	employeeService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/employee"
	punchService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/punch"
	"golang.org/x/sync/errgroup"
)

const version = "v1.0.0"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With(slog.String("app", "biotime-attendance"), slog.String("env", cfg.App.Env)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	loc := cfg.Location()

	punchRepo := postgresql.NewPunchRepository(db)
	dayRepo := postgresql.NewAttendanceDayRepository(db)
	absenceRepo := postgresql.NewAbsenceRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	userRepo := postgresql.NewUserRepository(db)
	transactor := postgresql.NewTransactor(db)

	deviceClient, err := biotime.NewClient(biotime.Config{
		BaseURL:  cfg.BioTime.BaseURL,
		Username: cfg.BioTime.Username,
		Password: cfg.BioTime.Password,
		Timeout:  cfg.BioTime.Timeout,
		TokenTTL: cfg.BioTime.TokenTTL,
		PageSize: cfg.BioTime.PageSize,
		MaxPages: cfg.BioTime.MaxPages,
		Location: loc,
	})
	if err != nil {
		return fmt.Errorf("create biotime client: %w", err)
	}

	rules, err := attendanceService.NewRules(cfg.Attendance, loc)
	if err != nil {
		return fmt.Errorf("attendance rules: %w", err)
	}

	hub := sse.NewHub()
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	attendanceSvc := attendanceService.NewAttendanceService(transactor, rules, time.Now, punchRepo, dayRepo, absenceRepo)
	punchSvc := punchService.NewPunchService(deviceClient, punchRepo, attendanceSvc, hub, loc, time.Now)
	reconciler := absenceService.NewReconciler(absenceRepo, dayRepo, employeeRepo, hub, loc, time.Now)
	employeeSvc := employeeService.NewEmployeeService(deviceClient, employeeRepo)
	authSvc := serviceAuth.NewAuthService(userRepo, JWTService)

	if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	scheduler := cron.NewScheduler(ctx)
	attendanceJobs := cron.NewAttendanceJobs(punchSvc, reconciler, employeeSvc, cfg.Schedule, loc, time.Now)
	if err := attendanceJobs.RegisterJobs(scheduler); err != nil {
		return err
	}

	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Env:           cfg.App.Env,
		Version:       version,
		FrontendURL:   cfg.App.FrontendURL,
		WebhookSecret: cfg.App.WebhookSecret,
		LogLevel:      cfg.SlogLevel(),
	}, JWTService, appHTTP.Handlers{
		Auth:       appHTTP.NewAuthHandler(JWTService, authSvc),
		Punch:      appHTTP.NewPunchHandler(punchSvc, loc),
		Attendance: appHTTP.NewAttendanceHandler(attendanceSvc),
		Absence:    appHTTP.NewAbsenceHandler(reconciler),
		Employee:   appHTTP.NewEmployeeHandler(employeeSvc),
		Event:      appHTTP.NewEventHandler(hub, JWTService),
	})

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end when the process starts shutting down
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "version", version, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
