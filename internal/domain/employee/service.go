package employee

import "context"

type EmployeeService interface {
	// SyncDirectory mirrors the device's personnel list into the directory
	SyncDirectory(ctx context.Context) (SyncResult, error)

	// SetExcluded is the only way the exclusion flag changes
	SetExcluded(ctx context.Context, req SetExclusionRequest) (EmployeeResponse, error)

	List(ctx context.Context, filter Filter) (ListEmployeeResponse, error)
}
