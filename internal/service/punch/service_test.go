package punch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/sse"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/repository/memory"
	attendanceService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	doha  = time.FixedZone("AST", 3*60*60)
	today = civil.Date{Year: 2026, Month: time.October, Day: 18}
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 18, hour, minute, 0, 0, doha)
}

type fakeSource struct {
	pages   [][]punch.Punch
	err     error
	windows []punch.Window
}

func (f *fakeSource) FetchAllPunches(ctx context.Context, window punch.Window, fn func([]punch.Punch) error) (int, error) {
	f.windows = append(f.windows, window)
	n := 0
	for _, page := range f.pages {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		n++
		if err := fn(page); err != nil {
			return n, err
		}
	}
	return n, f.err
}

type recordingHub struct {
	events []sse.Event
}

func (h *recordingHub) Broadcast(event sse.Event) {
	h.events = append(h.events, event)
}

type fixture struct {
	store  *memory.Store
	source *fakeSource
	hub    *recordingHub
	svc    punch.PunchService
}

func newFixture(pages ...[]punch.Punch) *fixture {
	store := memory.NewStore()
	clock := func() time.Time { return at(12, 0) }
	att := attendanceService.NewAttendanceService(store.Transactor(), attendanceService.DefaultRules(doha), clock,
		store.Punches(), store.Days(), store.Absences())

	f := &fixture{store: store, source: &fakeSource{pages: pages}, hub: &recordingHub{}}
	f.svc = NewPunchService(f.source, store.Punches(), att, f.hub, doha, clock)
	return f
}

func TestSyncToday_StoresAndDerives(t *testing.T) {
	f := newFixture(
		[]punch.Punch{
			{ID: 1, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(8, 45)},
			{ID: 2, EmployeeCode: "1002", FirstName: "Badr", PunchTime: at(7, 0)},
		},
		[]punch.Punch{
			{ID: 3, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(17, 10)},
			{ID: 0, EmployeeCode: "1003", PunchTime: at(7, 0)},
			{ID: 4, EmployeeCode: "", PunchTime: at(7, 0)},
		},
	)

	result, err := f.svc.SyncToday(context.Background())
	require.NoError(t, err)

	assert.Equal(t, punch.SyncResult{Pages: 2, Fetched: 5, Saved: 3, Skipped: 2, DaysRecomputed: 2}, result)

	require.Len(t, f.source.windows, 1)
	start, end := today.Bounds(doha)
	assert.True(t, f.source.windows[0].Start.Equal(start))
	assert.True(t, f.source.windows[0].End.Equal(end))

	day, ok := f.store.Day("1001", today)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusLate, day.CheckIn.Status)
	assert.Equal(t, 8.42, day.TotalHours)

	require.Len(t, f.hub.events, 1)
	assert.Equal(t, sse.EventPunchesSynced, f.hub.events[0].Event)
}

func TestSyncWindow_RedeliveryIsIdempotent(t *testing.T) {
	page := []punch.Punch{
		{ID: 1, EmployeeCode: "1001", PunchTime: at(7, 0)},
		{ID: 2, EmployeeCode: "1001", PunchTime: at(16, 0)},
	}
	f := newFixture(page)
	ctx := context.Background()

	_, err := f.svc.SyncToday(ctx)
	require.NoError(t, err)
	first, _ := f.store.Day("1001", today)

	_, err = f.svc.SyncToday(ctx)
	require.NoError(t, err)
	second, _ := f.store.Day("1001", today)

	listed, err := f.svc.ListPunches(ctx, punch.ListRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, listed.TotalCount)
	assert.Equal(t, first.CheckIn, second.CheckIn)
	assert.Equal(t, first.CheckOut, second.CheckOut)
}

func TestSyncWindow_PageLimitIsNotFatal(t *testing.T) {
	f := newFixture([]punch.Punch{{ID: 1, EmployeeCode: "1001", PunchTime: at(7, 0)}})
	f.source.err = fmt.Errorf("%w after 1 pages", biotime.ErrPageLimitReached)

	result, err := f.svc.SyncToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 1, result.DaysRecomputed)
}

func TestSyncWindow_DeviceErrorAbortsRun(t *testing.T) {
	f := newFixture([]punch.Punch{{ID: 1, EmployeeCode: "1001", PunchTime: at(7, 0)}})
	f.source.err = &biotime.ExternalServiceError{StatusCode: 502, Path: "/iclock/api/transactions/"}

	result, err := f.svc.SyncToday(context.Background())

	var svcErr *biotime.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	// Pages saved before the failure still count and their days are derived.
	assert.Equal(t, 1, result.Saved)
	_, ok := f.store.Day("1001", today)
	assert.True(t, ok)
	assert.Empty(t, f.hub.events)
}

func TestSyncWindow_InvalidWindow(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SyncWindow(context.Background(), punch.Window{Start: at(10, 0), End: at(9, 0)})
	assert.ErrorIs(t, err, punch.ErrInvalidWindow)
}

func TestIngestWebhook(t *testing.T) {
	f := newFixture()

	result, err := f.svc.IngestWebhook(context.Background(), []punch.Punch{
		{ID: 10, EmployeeCode: "1001", PunchTime: at(7, 55)},
		{ID: 11, EmployeeCode: "1001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 1, result.Skipped)

	day, ok := f.store.Day("1001", today)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusPresent, day.CheckIn.Status)
}

func TestListPunches_FiltersByState(t *testing.T) {
	f := newFixture([]punch.Punch{
		{ID: 1, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(7, 0), StateLabel: "Check In"},
		{ID: 2, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(16, 0), StateLabel: "Check Out"},
		{ID: 3, EmployeeCode: "1002", FirstName: "Badr", PunchTime: at(7, 10), StateLabel: "Check In"},
	})
	ctx := context.Background()
	_, err := f.svc.SyncToday(ctx)
	require.NoError(t, err)

	state := "Check In"
	resp, err := f.svc.ListPunches(ctx, punch.ListRequest{State: &state})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.TotalCount)

	search := "badr"
	resp, err = f.svc.ListPunches(ctx, punch.ListRequest{Search: &search})
	require.NoError(t, err)
	require.Len(t, resp.Punches, 1)
	assert.Equal(t, "1002", resp.Punches[0].EmployeeCode)

	yesterday := "2026-10-17"
	resp, err = f.svc.ListPunches(ctx, punch.ListRequest{Date: &yesterday})
	require.NoError(t, err)
	assert.Empty(t, resp.Punches)
}

// failingDays fails the recompute of one employee's days
type failingDays struct {
	attendance.AttendanceService
	code string
}

func (f failingDays) RecomputeDay(ctx context.Context, employeeCode string, date civil.Date) (attendance.AttendanceDay, error) {
	if employeeCode == f.code {
		return attendance.AttendanceDay{}, errors.New("db down")
	}
	return f.AttendanceService.RecomputeDay(ctx, employeeCode, date)
}

func TestSyncWindow_RecomputeFailureFailsRun(t *testing.T) {
	f := newFixture([]punch.Punch{
		{ID: 1, EmployeeCode: "1001", PunchTime: at(7, 50)},
		{ID: 2, EmployeeCode: "1002", PunchTime: at(7, 55)},
	})
	clock := func() time.Time { return at(12, 0) }
	att := attendanceService.NewAttendanceService(f.store.Transactor(), attendanceService.DefaultRules(doha), clock,
		f.store.Punches(), f.store.Days(), f.store.Absences())
	svc := NewPunchService(f.source, f.store.Punches(), failingDays{AttendanceService: att, code: "1001"}, f.hub, doha, clock)

	result, err := svc.SyncToday(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 1, result.DaysRecomputed)

	_, ok := f.store.Day("1002", today)
	assert.True(t, ok)
	_, ok = f.store.Day("1001", today)
	assert.False(t, ok)
}

func TestIngestWebhook_RecomputeFailureIsReported(t *testing.T) {
	f := newFixture()
	clock := func() time.Time { return at(12, 0) }
	att := attendanceService.NewAttendanceService(f.store.Transactor(), attendanceService.DefaultRules(doha), clock,
		f.store.Punches(), f.store.Days(), f.store.Absences())
	svc := NewPunchService(f.source, f.store.Punches(), failingDays{AttendanceService: att, code: "1001"}, f.hub, doha, clock)

	result, err := svc.IngestWebhook(context.Background(), []punch.Punch{{ID: 7, EmployeeCode: "1001", PunchTime: at(7, 50)}})
	require.Error(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 0, result.DaysRecomputed)
}
