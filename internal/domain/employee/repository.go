package employee

import "context"

type EmployeeRepository interface {
	// UpsertFromDevice writes name/department/position; it never touches excluded
	UpsertFromDevice(ctx context.Context, e Employee) error

	// MarkMissingAsDeleted flags every entry whose code is not in seen
	MarkMissingAsDeleted(ctx context.Context, seen []string) (int64, error)

	GetByEmployeeCode(ctx context.Context, employeeCode string) (Employee, error)

	// ListActive returns entries that are neither excluded nor deleted on the device
	ListActive(ctx context.Context) ([]Employee, error)

	SetExcluded(ctx context.Context, employeeCode string, excluded bool) error

	List(ctx context.Context, filter Filter) ([]Employee, int64, error)
}
