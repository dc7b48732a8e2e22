package employee

import (
	"context"
	"errors"
	"testing"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	pages [][]employee.Employee
	err   error
}

func (f *fakeDirectory) FetchEmployees(_ context.Context, fn func([]employee.Employee) error) (int, error) {
	for _, page := range f.pages {
		if err := fn(page); err != nil {
			return 0, err
		}
	}
	return len(f.pages), f.err
}

func boolPtr(b bool) *bool { return &b }

func TestSyncDirectory_PreservesExclusionAndMarksRemoved(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	source := &fakeDirectory{pages: [][]employee.Employee{{
		{EmployeeCode: "1001", DisplayName: "Amal"},
		{EmployeeCode: "1002", DisplayName: "Badr"},
		{EmployeeCode: "bad code", DisplayName: "Ghost"},
	}}}
	svc := NewEmployeeService(source, store.Employees())

	result, err := svc.SyncDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, employee.SyncResult{Fetched: 3, Saved: 2, Skipped: 1}, result)

	_, err = svc.SetExcluded(ctx, employee.SetExclusionRequest{EmployeeCode: "1001", Excluded: boolPtr(true)})
	require.NoError(t, err)

	// 1002 left the device; 1001 is renamed
	source.pages = [][]employee.Employee{{{EmployeeCode: "1001", DisplayName: "Amal Saleh"}}}
	result, err = svc.SyncDirectory(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Removed)

	amal, err := store.Employees().GetByEmployeeCode(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, amal.Excluded)
	assert.Equal(t, "Amal Saleh", amal.DisplayName)

	badr, err := store.Employees().GetByEmployeeCode(ctx, "1002")
	require.NoError(t, err)
	assert.True(t, badr.DeletedOnDevice)
}

func TestSyncDirectory_FailedFetchMarksNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Employees().UpsertFromDevice(ctx, employee.Employee{EmployeeCode: "1001"}))

	svc := NewEmployeeService(&fakeDirectory{err: errors.New("device offline")}, store.Employees())
	_, err := svc.SyncDirectory(ctx)
	require.Error(t, err)

	emp, err := store.Employees().GetByEmployeeCode(ctx, "1001")
	require.NoError(t, err)
	assert.False(t, emp.DeletedOnDevice)
}

func TestSetExcluded_Validation(t *testing.T) {
	svc := NewEmployeeService(&fakeDirectory{}, memory.NewStore().Employees())
	ctx := context.Background()

	_, err := svc.SetExcluded(ctx, employee.SetExclusionRequest{EmployeeCode: "1001"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.SetExcluded(ctx, employee.SetExclusionRequest{EmployeeCode: "1001", Excluded: boolPtr(true)})
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestList_FiltersExcluded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, code := range []string{"1001", "1002", "1003"} {
		require.NoError(t, store.Employees().UpsertFromDevice(ctx, employee.Employee{EmployeeCode: code}))
	}
	require.NoError(t, store.Employees().SetExcluded(ctx, "1002", true))
	svc := NewEmployeeService(&fakeDirectory{}, store.Employees())

	resp, err := svc.List(ctx, employee.Filter{Excluded: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, resp.Employees, 1)
	assert.Equal(t, "1002", resp.Employees[0].EmployeeCode)
	assert.Equal(t, 50, resp.Limit)

	resp, err = svc.List(ctx, employee.Filter{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Employees, 1)
	assert.Equal(t, 2, resp.TotalPages)
}
