package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/config"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

const (
	JobSyncPunches       = "sync_punches"
	JobReconcileAbsences = "reconcile_absences"
	JobSyncDirectory     = "sync_employee_directory"
)

type AttendanceJobs struct {
	punchService    punch.PunchService
	reconciler      absence.Reconciler
	employeeService employee.EmployeeService
	schedule        config.ScheduleConfig
	loc             *time.Location
	now             func() time.Time

	mu       sync.Mutex
	lastSync time.Time
}

func NewAttendanceJobs(
	punchService punch.PunchService,
	reconciler absence.Reconciler,
	employeeService employee.EmployeeService,
	schedule config.ScheduleConfig,
	loc *time.Location,
	now func() time.Time,
) *AttendanceJobs {
	if now == nil {
		now = time.Now
	}
	return &AttendanceJobs{
		punchService:    punchService,
		reconciler:      reconciler,
		employeeService: employeeService,
		schedule:        schedule,
		loc:             loc,
		now:             now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) error {
	jobs := []Job{
		{
			Name:       JobSyncPunches,
			Interval:   j.schedule.PunchSyncInterval,
			Timeout:    j.schedule.PunchSyncTimeout,
			RunOnStart: true,
			Fn:         j.SyncPunches,
		},
		{
			Name:     JobReconcileAbsences,
			Interval: j.schedule.ReconcileInterval,
			Timeout:  j.schedule.ReconcileTimeout,
			Fn:       j.ReconcileAbsences,
		},
		{
			Name:       JobSyncDirectory,
			Interval:   j.schedule.DirectorySyncInterval,
			RunOnStart: true,
			Fn:         j.SyncEmployeeDirectory,
		},
	}

	for _, job := range jobs {
		if err := scheduler.AddJob(job); err != nil {
			return err
		}
	}
	return nil
}

// SyncPunches pulls today's punches and records when the last complete sync finished
func (j *AttendanceJobs) SyncPunches(ctx context.Context) error {
	result, err := j.punchService.SyncToday(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync punches: %w", err)
	}

	j.mu.Lock()
	j.lastSync = j.now()
	j.mu.Unlock()

	slog.Info("Cron: punch sync finished",
		"fetched", result.Fetched,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"days_recomputed", result.DaysRecomputed,
	)
	return nil
}

// ReconcileAbsences records today's absences once the check-in window has
// closed and a punch sync has completed after the cut-off.
func (j *AttendanceJobs) ReconcileAbsences(ctx context.Context) error {
	now := j.now().In(j.loc)
	if now.Hour() < j.schedule.ReconcileAfterHour {
		slog.Debug("Cron: skipping absence reconciliation before cut-off", "hour", now.Hour(), "after_hour", j.schedule.ReconcileAfterHour)
		return nil
	}

	cutoff := time.Date(now.Year(), now.Month(), now.Day(), j.schedule.ReconcileAfterHour, 0, 0, 0, j.loc)
	if j.lastSyncAt().Before(cutoff) {
		slog.Info("Cron: waiting for a punch sync after cut-off before reconciling", "cutoff", cutoff)
		return nil
	}

	result, err := j.reconciler.Reconcile(ctx, civil.FromTime(now, j.loc))
	if err != nil {
		return fmt.Errorf("failed to reconcile absences: %w", err)
	}

	slog.Info("Cron: absence reconciliation finished",
		"date", result.Date.String(),
		"active", result.Active,
		"present", result.Present,
		"inserted", result.Inserted,
	)
	return nil
}

func (j *AttendanceJobs) SyncEmployeeDirectory(ctx context.Context) error {
	result, err := j.employeeService.SyncDirectory(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync employee directory: %w", err)
	}

	slog.Info("Cron: employee directory sync finished",
		"fetched", result.Fetched,
		"saved", result.Saved,
		"removed", result.Removed,
	)
	return nil
}

func (j *AttendanceJobs) lastSyncAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSync
}
