package punch

import (
	"context"
	"time"
)

// PunchRepository stores raw punches. There is no delete: the device history
// is append-mostly and every write is an idempotent upsert by ID.
type PunchRepository interface {
	// Upsert inserts or replaces a punch by its device ID
	Upsert(ctx context.Context, p Punch) error

	// ListForEmployeeBetween returns an employee's punches in [from, to), oldest first
	ListForEmployeeBetween(ctx context.Context, employeeCode string, from, to time.Time) ([]Punch, error)

	// List returns punches for the dashboard with filters and pagination
	List(ctx context.Context, filter Filter) ([]Punch, int64, error)
}
