package punch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/sse"
)

// PunchSource is the device-side half of ingestion
type PunchSource interface {
	FetchAllPunches(ctx context.Context, window punch.Window, fn func([]punch.Punch) error) (int, error)
}

type PunchServiceImpl struct {
	source     PunchSource
	repo       punch.PunchRepository
	attendance attendance.AttendanceService
	hub        sse.Broadcaster
	loc        *time.Location
	now        func() time.Time
}

func NewPunchService(
	source PunchSource,
	repo punch.PunchRepository,
	attendanceService attendance.AttendanceService,
	hub sse.Broadcaster,
	loc *time.Location,
	now func() time.Time,
) punch.PunchService {
	if now == nil {
		now = time.Now
	}
	return &PunchServiceImpl{
		source:     source,
		repo:       repo,
		attendance: attendanceService,
		hub:        hub,
		loc:        loc,
		now:        now,
	}
}

// touched collects the days whose punches changed during one run
type touched map[attendance.Key]struct{}

// SyncWindow implements punch.PunchService.
func (s *PunchServiceImpl) SyncWindow(ctx context.Context, window punch.Window) (punch.SyncResult, error) {
	if err := window.Validate(); err != nil {
		return punch.SyncResult{}, err
	}

	var result punch.SyncResult
	days := make(touched)

	pages, fetchErr := s.source.FetchAllPunches(ctx, window, func(batch []punch.Punch) error {
		return s.store(ctx, batch, &result, days)
	})
	result.Pages = pages

	// A capped run still saved every page it saw; derive those days and report.
	if fetchErr != nil && !errors.Is(fetchErr, biotime.ErrPageLimitReached) {
		var recomputeErr error
		if ctx.Err() == nil {
			recomputeErr = s.recompute(ctx, days, &result)
		}
		return result, errors.Join(fmt.Errorf("failed to fetch punches: %w", fetchErr), recomputeErr)
	}
	if fetchErr != nil {
		slog.Warn("Ingestion: page limit reached, window truncated",
			"pages", pages, "start", window.Start, "end", window.End)
	}

	recomputeErr := s.recompute(ctx, days, &result)
	s.publish(result)
	if recomputeErr != nil {
		return result, recomputeErr
	}

	slog.Info("Ingestion: sync completed",
		"pages", result.Pages,
		"fetched", result.Fetched,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"days_recomputed", result.DaysRecomputed,
	)
	return result, nil
}

// SyncToday implements punch.PunchService.
func (s *PunchServiceImpl) SyncToday(ctx context.Context) (punch.SyncResult, error) {
	start, end := civil.Today(s.now(), s.loc).Bounds(s.loc)
	return s.SyncWindow(ctx, punch.Window{Start: start, End: end})
}

// IngestWebhook implements punch.PunchService.
func (s *PunchServiceImpl) IngestWebhook(ctx context.Context, records []punch.Punch) (punch.SyncResult, error) {
	var result punch.SyncResult
	days := make(touched)

	if err := s.store(ctx, records, &result, days); err != nil {
		return result, err
	}
	recomputeErr := s.recompute(ctx, days, &result)
	s.publish(result)
	if recomputeErr != nil {
		return result, recomputeErr
	}

	slog.Info("Ingestion: webhook batch stored",
		"fetched", result.Fetched, "saved", result.Saved, "skipped", result.Skipped)
	return result, nil
}

// ListPunches implements punch.PunchService.
func (s *PunchServiceImpl) ListPunches(ctx context.Context, req punch.ListRequest) (punch.ListPunchResponse, error) {
	if err := req.Validate(); err != nil {
		return punch.ListPunchResponse{}, err
	}

	date := civil.Today(s.now(), s.loc)
	if req.Date != nil {
		d, err := civil.Parse(*req.Date)
		if err != nil {
			return punch.ListPunchResponse{}, err
		}
		date = d
	}
	from, to := date.Bounds(s.loc)

	filter := punch.Filter{
		Date:   date,
		From:   from,
		To:     to,
		Search: req.Search,
		State:  req.State,
		Page:   req.Page,
		Limit:  req.Limit,
	}
	punches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return punch.ListPunchResponse{}, fmt.Errorf("failed to list punches: %w", err)
	}

	responses := make([]punch.PunchResponse, 0, len(punches))
	for _, p := range punches {
		responses = append(responses, punch.ToResponse(p))
	}

	return punch.ListPunchResponse{
		Punches:    responses,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// store validates and upserts a batch. Malformed records are skipped; a store
// failure aborts the run.
func (s *PunchServiceImpl) store(ctx context.Context, batch []punch.Punch, result *punch.SyncResult, days touched) error {
	for _, p := range batch {
		result.Fetched++

		if err := p.Validate(); err != nil {
			result.Skipped++
			slog.Warn("Ingestion: skipping malformed record", "error", err)
			continue
		}
		if err := s.repo.Upsert(ctx, p); err != nil {
			return err
		}
		result.Saved++
		days[attendance.Key{EmployeeCode: p.EmployeeCode, Date: civil.FromTime(p.PunchTime, s.loc)}] = struct{}{}
	}
	return nil
}

// recompute derives every touched day in a stable order. One failing day does
// not stop the others; the joined error makes the caller retry the run.
func (s *PunchServiceImpl) recompute(ctx context.Context, days touched, result *punch.SyncResult) error {
	keys := make([]attendance.Key, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date.Before(keys[j].Date)
		}
		return keys[i].EmployeeCode < keys[j].EmployeeCode
	})

	var errs []error
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if _, err := s.attendance.RecomputeDay(ctx, k.EmployeeCode, k.Date); err != nil {
			slog.Error("Ingestion: failed to recompute attendance day",
				"employee_code", k.EmployeeCode, "date", k.Date.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		result.DaysRecomputed++
	}
	if len(errs) > 0 {
		return fmt.Errorf("recomputed %d of %d attendance days: %w", result.DaysRecomputed, len(keys), errors.Join(errs...))
	}
	return nil
}

func (s *PunchServiceImpl) publish(result punch.SyncResult) {
	if s.hub == nil || result.Saved == 0 {
		return
	}
	s.hub.Broadcast(sse.Event{Event: sse.EventPunchesSynced, Data: result})
}
