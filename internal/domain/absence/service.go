package absence

import (
	"context"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

// Reconciler records which active employees had no qualifying presence on a day
type Reconciler interface {
	// Reconcile inserts missing absence records for date
	Reconcile(ctx context.Context, date civil.Date) (ReconcileResult, error)

	// ReconcileToday reconciles the current civil day in the reference timezone
	ReconcileToday(ctx context.Context) (ReconcileResult, error)

	// ReconcileRange reconciles each day in [from, to] independently
	ReconcileRange(ctx context.Context, from, to civil.Date) (ReconcileRangeResponse, error)

	// Trigger resolves an on-demand request to one of the above
	Trigger(ctx context.Context, req ReconcileRequest) (ReconcileRangeResponse, error)

	// ListAbsences lists absence records for a date range, excluding excluded employees
	ListAbsences(ctx context.Context, req ListRequest) (ListAbsenceResponse, error)
}
