package absence

import (
	"context"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

type AbsenceRepository interface {
	// LockDay serialises absence writers for one employee and date until the
	// surrounding transaction ends
	LockDay(ctx context.Context, employeeCode string, date civil.Date) error

	// InsertMissing inserts records whose key does not exist yet and returns how
	// many rows were actually inserted. Existing records are left untouched, and
	// so is any key whose attendance day already shows a presence check-in.
	InsertMissing(ctx context.Context, records []AbsenceRecord) (int, error)

	// Delete removes the record for a key; deleting a missing key is not an error
	Delete(ctx context.Context, employeeCode string, date civil.Date) (bool, error)

	// List returns records in [from, to] for employees not excluded in the directory
	List(ctx context.Context, filter Filter) ([]AbsenceRecord, int64, error)

	// CountBetween counts records in [from, to] for non-excluded employees
	CountBetween(ctx context.Context, from, to civil.Date) (int64, error)
}
