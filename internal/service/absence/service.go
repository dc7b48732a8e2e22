package absence

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/sse"
	"github.com/google/uuid"
)

const maxReconcileDays = 31

type ReconcilerImpl struct {
	absence.AbsenceRepository
	attendance.AttendanceDayRepository
	employee.EmployeeRepository
	hub sse.Broadcaster
	loc *time.Location
	now func() time.Time
}

func NewReconciler(
	absenceRepo absence.AbsenceRepository,
	dayRepo attendance.AttendanceDayRepository,
	employeeRepo employee.EmployeeRepository,
	hub sse.Broadcaster,
	loc *time.Location,
	now func() time.Time,
) absence.Reconciler {
	if now == nil {
		now = time.Now
	}
	return &ReconcilerImpl{
		AbsenceRepository:       absenceRepo,
		AttendanceDayRepository: dayRepo,
		EmployeeRepository:      employeeRepo,
		hub:                     hub,
		loc:                     loc,
		now:                     now,
	}
}

// Reconcile implements absence.Reconciler.
func (r *ReconcilerImpl) Reconcile(ctx context.Context, date civil.Date) (absence.ReconcileResult, error) {
	result, err := r.reconcile(ctx, date)
	if err != nil {
		return absence.ReconcileResult{}, err
	}
	r.publish([]absence.ReconcileResult{result}, result.Inserted)
	return result, nil
}

// ReconcileToday implements absence.Reconciler.
func (r *ReconcilerImpl) ReconcileToday(ctx context.Context) (absence.ReconcileResult, error) {
	return r.Reconcile(ctx, r.today())
}

// ReconcileRange implements absence.Reconciler.
func (r *ReconcilerImpl) ReconcileRange(ctx context.Context, from, to civil.Date) (absence.ReconcileRangeResponse, error) {
	if from.After(to) {
		return absence.ReconcileRangeResponse{}, absence.ErrInvalidDateRange
	}
	if to.After(r.today()) {
		return absence.ReconcileRangeResponse{}, absence.ErrFutureDate
	}
	days := civil.Range(from, to)
	if len(days) > maxReconcileDays {
		return absence.ReconcileRangeResponse{}, absence.ErrDateRangeTooLong
	}

	resp := absence.ReconcileRangeResponse{Days: make([]absence.ReconcileResult, 0, len(days))}
	for _, date := range days {
		result, err := r.reconcile(ctx, date)
		if err != nil {
			return absence.ReconcileRangeResponse{}, err
		}
		resp.Days = append(resp.Days, result)
		resp.Inserted += result.Inserted
	}

	r.publish(resp.Days, resp.Inserted)
	return resp, nil
}

// Trigger implements absence.Reconciler.
func (r *ReconcilerImpl) Trigger(ctx context.Context, req absence.ReconcileRequest) (absence.ReconcileRangeResponse, error) {
	if err := req.Validate(); err != nil {
		return absence.ReconcileRangeResponse{}, err
	}

	from, to := r.today(), r.today()
	switch {
	case req.Date != nil:
		d, err := civil.Parse(*req.Date)
		if err != nil {
			return absence.ReconcileRangeResponse{}, err
		}
		from, to = d, d
	case req.StartDate != nil && req.EndDate != nil:
		var err error
		if from, err = civil.Parse(*req.StartDate); err != nil {
			return absence.ReconcileRangeResponse{}, err
		}
		if to, err = civil.Parse(*req.EndDate); err != nil {
			return absence.ReconcileRangeResponse{}, err
		}
	}

	return r.ReconcileRange(ctx, from, to)
}

// ListAbsences implements absence.Reconciler.
func (r *ReconcilerImpl) ListAbsences(ctx context.Context, req absence.ListRequest) (absence.ListAbsenceResponse, error) {
	if err := req.Validate(); err != nil {
		return absence.ListAbsenceResponse{}, err
	}

	from, to, err := attendance.ResolveRange(nil, req.StartDate, req.EndDate, r.today())
	if err != nil {
		return absence.ListAbsenceResponse{}, err
	}

	filter := absence.Filter{From: from, To: to, Page: req.Page, Limit: req.Limit}
	records, total, err := r.AbsenceRepository.List(ctx, filter)
	if err != nil {
		return absence.ListAbsenceResponse{}, fmt.Errorf("failed to list absences: %w", err)
	}

	responses := make([]absence.AbsenceResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, absence.ToResponse(rec))
	}

	return absence.ListAbsenceResponse{
		Absences:   responses,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// reconcile inserts an absence for every active employee without a presence
// check-in on date. Existing records keep their identity.
func (r *ReconcilerImpl) reconcile(ctx context.Context, date civil.Date) (absence.ReconcileResult, error) {
	if date.After(r.today()) {
		return absence.ReconcileResult{}, absence.ErrFutureDate
	}

	active, err := r.EmployeeRepository.ListActive(ctx)
	if err != nil {
		return absence.ReconcileResult{}, fmt.Errorf("failed to load active employees: %w", err)
	}
	presentCodes, err := r.AttendanceDayRepository.ListPresentCodes(ctx, date)
	if err != nil {
		return absence.ReconcileResult{}, fmt.Errorf("failed to load present employees: %w", err)
	}

	present := make(map[string]struct{}, len(presentCodes))
	for _, code := range presentCodes {
		present[code] = struct{}{}
	}

	var missing []absence.AbsenceRecord
	for _, emp := range active {
		if _, ok := present[emp.EmployeeCode]; ok {
			continue
		}
		missing = append(missing, absence.AbsenceRecord{
			ID:           uuid.NewString(),
			EmployeeCode: emp.EmployeeCode,
			EmployeeName: emp.DisplayName,
			Date:         date,
			Reason:       absence.ReasonNoCheckIn,
			Status:       absence.StatusAbsent,
		})
	}

	inserted, err := r.AbsenceRepository.InsertMissing(ctx, missing)
	if err != nil {
		return absence.ReconcileResult{}, fmt.Errorf("failed to insert absences for %s: %w", date, err)
	}

	result := absence.ReconcileResult{
		Date:     date,
		Active:   len(active),
		Present:  len(active) - len(missing),
		Inserted: inserted,
	}
	slog.Info("Reconciler: absences reconciled",
		"date", date.String(),
		"active", result.Active,
		"present", result.Present,
		"inserted", result.Inserted,
	)
	return result, nil
}

func (r *ReconcilerImpl) today() civil.Date {
	return civil.Today(r.now(), r.loc)
}

func (r *ReconcilerImpl) publish(days []absence.ReconcileResult, inserted int) {
	if r.hub == nil || inserted == 0 {
		return
	}
	r.hub.Broadcast(sse.Event{
		Event: sse.EventAbsencesReconciled,
		Data:  absence.ReconcileRangeResponse{Days: days, Inserted: inserted},
	})
}
