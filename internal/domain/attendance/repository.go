package attendance

import (
	"context"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

// AttendanceDayRepository persists derived attendance days keyed by
// (employee_code, date).
type AttendanceDayRepository interface {
	// Upsert writes every column of the day, clearing marks the new derivation lacks
	Upsert(ctx context.Context, day AttendanceDay) error

	// GetByEmployeeAndDate returns nil, nil when no record exists
	GetByEmployeeAndDate(ctx context.Context, employeeCode string, date civil.Date) (*AttendanceDay, error)

	// ListPresentCodes returns employee codes whose check-in on date counts as presence
	ListPresentCodes(ctx context.Context, date civil.Date) ([]string, error)

	// List retrieves attendance days with filters and pagination
	List(ctx context.Context, filter Filter) ([]AttendanceDay, int64, error)

	// CountByStatus counts present, late and early-out days in [from, to]
	CountByStatus(ctx context.Context, from, to civil.Date) (StatusCounts, error)
}
