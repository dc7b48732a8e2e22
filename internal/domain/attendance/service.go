package attendance

import (
	"context"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

// AttendanceService derives and serves per-employee attendance days
type AttendanceService interface {
	// RecomputeDay re-derives one (employee, date) aggregate from stored punches
	RecomputeDay(ctx context.Context, employeeCode string, date civil.Date) (AttendanceDay, error)

	// ListDays retrieves attendance days for a date or date range
	ListDays(ctx context.Context, req ListRequest) (ListAttendanceResponse, error)

	// Summary counts present, late, early-out and absent days over a range
	Summary(ctx context.Context, startDate, endDate *string) (SummaryResponse, error)
}
