package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

type AttendanceServiceImpl struct {
	tx    database.Transactor
	rules Rules
	now   func() time.Time
	punch.PunchRepository
	attendance.AttendanceDayRepository
	absence.AbsenceRepository
}

func NewAttendanceService(
	tx database.Transactor,
	rules Rules,
	now func() time.Time,
	punchRepo punch.PunchRepository,
	dayRepo attendance.AttendanceDayRepository,
	absenceRepo absence.AbsenceRepository,
) attendance.AttendanceService {
	if now == nil {
		now = time.Now
	}
	return &AttendanceServiceImpl{
		tx:                      tx,
		rules:                   rules,
		now:                     now,
		PunchRepository:         punchRepo,
		AttendanceDayRepository: dayRepo,
		AbsenceRepository:       absenceRepo,
	}
}

// RecomputeDay implements attendance.AttendanceService.
// A day that now shows presence loses any absence recorded for it earlier.
func (s *AttendanceServiceImpl) RecomputeDay(ctx context.Context, employeeCode string, date civil.Date) (attendance.AttendanceDay, error) {
	from, to := date.Bounds(s.rules.Location)

	var day attendance.AttendanceDay
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.AbsenceRepository.LockDay(txCtx, employeeCode, date); err != nil {
			return err
		}

		punches, err := s.PunchRepository.ListForEmployeeBetween(txCtx, employeeCode, from, to)
		if err != nil {
			return fmt.Errorf("failed to load punches: %w", err)
		}
		if len(punches) == 0 {
			day = attendance.AttendanceDay{EmployeeCode: employeeCode, Date: date}
			return nil
		}

		day = s.rules.Derive(employeeCode, date, punches)
		if err := s.AttendanceDayRepository.Upsert(txCtx, day); err != nil {
			return err
		}

		if day.IsPresent() {
			retracted, err := s.AbsenceRepository.Delete(txCtx, employeeCode, date)
			if err != nil {
				return err
			}
			if retracted {
				slog.Info("Attendance: absence retracted after check-in",
					"employee_code", employeeCode, "date", date.String())
			}
		}
		return nil
	})
	if err != nil {
		return attendance.AttendanceDay{}, fmt.Errorf("failed to recompute %s/%s: %w", employeeCode, date, err)
	}

	return day, nil
}

// ListDays implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListDays(ctx context.Context, req attendance.ListRequest) (attendance.ListAttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	today := civil.Today(s.now(), s.rules.Location)
	from, to, err := attendance.ResolveRange(req.Date, req.StartDate, req.EndDate, today)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	filter := attendance.Filter{
		EmployeeCode: req.EmployeeCode,
		From:         from,
		To:           to,
		Page:         req.Page,
		Limit:        req.Limit,
	}
	days, total, err := s.AttendanceDayRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendance days: %w", err)
	}

	responses := make([]attendance.AttendanceDayResponse, 0, len(days))
	for _, d := range days {
		responses = append(responses, attendance.ToResponse(d, s.rules.Location))
	}

	return attendance.ListAttendanceResponse{
		Days:       responses,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Summary implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Summary(ctx context.Context, startDate, endDate *string) (attendance.SummaryResponse, error) {
	var errs validator.ValidationErrors
	fields := []struct {
		name  string
		value *string
	}{
		{"start_date", startDate},
		{"end_date", endDate},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if _, ok := validator.IsValidDate(*f.value); !ok {
			errs = append(errs, validator.ValidationError{Field: f.name, Message: f.name + " must be in YYYY-MM-DD format"})
		}
	}
	if len(errs) > 0 {
		return attendance.SummaryResponse{}, errs
	}

	today := civil.Today(s.now(), s.rules.Location)
	from, to, err := attendance.ResolveRange(nil, startDate, endDate, today)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	counts, err := s.AttendanceDayRepository.CountByStatus(ctx, from, to)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}
	absent, err := s.AbsenceRepository.CountBetween(ctx, from, to)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	return attendance.SummaryResponse{
		From:     from,
		To:       to,
		Present:  counts.Present,
		Late:     counts.Late,
		EarlyOut: counts.EarlyOut,
		Absent:   absent,
	}, nil
}
