package employee

import (
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

type Filter struct {
	Search   *string
	Excluded *bool
	Page     int
	Limit    int
}

func (f *Filter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 500",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SetExclusionRequest struct {
	EmployeeCode string `json:"-"`
	Excluded     *bool  `json:"excluded"`
}

func (r *SetExclusionRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidEmployeeCode(r.EmployeeCode) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code must be alphanumeric",
		})
	}
	if r.Excluded == nil {
		errs = append(errs, validator.ValidationError{
			Field:   "excluded",
			Message: "excluded is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SyncResult struct {
	Fetched int   `json:"fetched"`
	Saved   int   `json:"saved"`
	Skipped int   `json:"skipped"`
	Removed int64 `json:"removed"`
}

type EmployeeResponse struct {
	EmployeeCode    string    `json:"emp_code"`
	DisplayName     string    `json:"first_name"`
	Department      string    `json:"department"`
	Position        string    `json:"position"`
	Excluded        bool      `json:"isExcluded"`
	DeletedOnDevice bool      `json:"isDeleted"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListEmployeeResponse struct {
	Employees  []EmployeeResponse `json:"employees"`
	TotalCount int64              `json:"total_count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

func ToResponse(e Employee) EmployeeResponse {
	return EmployeeResponse{
		EmployeeCode:    e.EmployeeCode,
		DisplayName:     e.DisplayName,
		Department:      e.Department,
		Position:        e.Position,
		Excluded:        e.Excluded,
		DeletedOnDevice: e.DeletedOnDevice,
		UpdatedAt:       e.UpdatedAt,
	}
}
