package punch

import "context"

// PunchService pulls punches from the device controller and feeds the
// attendance pipeline.
type PunchService interface {
	// SyncWindow fetches every punch in the window and re-derives each touched day
	SyncWindow(ctx context.Context, window Window) (SyncResult, error)

	// SyncToday syncs the current civil day in the reference timezone
	SyncToday(ctx context.Context) (SyncResult, error)

	// IngestWebhook stores punches pushed by the device instead of pulled
	IngestWebhook(ctx context.Context, records []Punch) (SyncResult, error)

	// ListPunches lists stored punches for the dashboard
	ListPunches(ctx context.Context, req ListRequest) (ListPunchResponse, error)
}
