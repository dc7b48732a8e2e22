package employee

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

// DirectorySource lists the personnel registered on the device controller
type DirectorySource interface {
	FetchEmployees(ctx context.Context, fn func([]employee.Employee) error) (int, error)
}

type EmployeeServiceImpl struct {
	source       DirectorySource
	employeeRepo employee.EmployeeRepository
}

func NewEmployeeService(source DirectorySource, employeeRepo employee.EmployeeRepository) employee.EmployeeService {
	return &EmployeeServiceImpl{
		source:       source,
		employeeRepo: employeeRepo,
	}
}

// SyncDirectory implements employee.EmployeeService.
// Entries are only marked deleted after a complete, non-empty listing.
func (s *EmployeeServiceImpl) SyncDirectory(ctx context.Context) (employee.SyncResult, error) {
	var result employee.SyncResult
	seen := make([]string, 0)

	_, err := s.source.FetchEmployees(ctx, func(batch []employee.Employee) error {
		for _, e := range batch {
			result.Fetched++
			if !validator.IsValidEmployeeCode(e.EmployeeCode) {
				result.Skipped++
				slog.Warn("Directory: skipping personnel record with invalid code", "employee_code", e.EmployeeCode)
				continue
			}
			if err := s.employeeRepo.UpsertFromDevice(ctx, e); err != nil {
				return err
			}
			result.Saved++
			seen = append(seen, e.EmployeeCode)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to sync employee directory: %w", err)
	}

	if len(seen) > 0 {
		removed, err := s.employeeRepo.MarkMissingAsDeleted(ctx, seen)
		if err != nil {
			return result, err
		}
		result.Removed = removed
	}

	slog.Info("Directory: sync completed",
		"fetched", result.Fetched,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"removed", result.Removed,
	)
	return result, nil
}

// SetExcluded implements employee.EmployeeService.
func (s *EmployeeServiceImpl) SetExcluded(ctx context.Context, req employee.SetExclusionRequest) (employee.EmployeeResponse, error) {
	if err := req.Validate(); err != nil {
		return employee.EmployeeResponse{}, err
	}

	if err := s.employeeRepo.SetExcluded(ctx, req.EmployeeCode, *req.Excluded); err != nil {
		return employee.EmployeeResponse{}, err
	}

	updated, err := s.employeeRepo.GetByEmployeeCode(ctx, req.EmployeeCode)
	if err != nil {
		return employee.EmployeeResponse{}, err
	}

	slog.Info("Directory: exclusion changed", "employee_code", req.EmployeeCode, "excluded", *req.Excluded)
	return employee.ToResponse(updated), nil
}

// List implements employee.EmployeeService.
func (s *EmployeeServiceImpl) List(ctx context.Context, filter employee.Filter) (employee.ListEmployeeResponse, error) {
	if err := filter.Validate(); err != nil {
		return employee.ListEmployeeResponse{}, err
	}

	employees, total, err := s.employeeRepo.List(ctx, filter)
	if err != nil {
		return employee.ListEmployeeResponse{}, fmt.Errorf("failed to list employees: %w", err)
	}

	responses := make([]employee.EmployeeResponse, 0, len(employees))
	for _, e := range employees {
		responses = append(responses, employee.ToResponse(e))
	}

	return employee.ListEmployeeResponse{
		Employees:  responses,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}
