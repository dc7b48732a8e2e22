package absence

import (
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

// ReconcileResult is the outcome of reconciling one civil day
type ReconcileResult struct {
	Date     civil.Date `json:"date"`
	Active   int        `json:"active"`
	Present  int        `json:"present"`
	Inserted int        `json:"inserted"`
}

type ReconcileRangeResponse struct {
	Days     []ReconcileResult `json:"days"`
	Inserted int               `json:"inserted"`
}

// ReconcileRequest is accepted by the on-demand trigger. Empty means today.
type ReconcileRequest struct {
	Date      *string `json:"date"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (r *ReconcileRequest) Validate() error {
	var errs validator.ValidationErrors

	for field, v := range map[string]*string{"date": r.Date, "start_date": r.StartDate, "end_date": r.EndDate} {
		if v == nil {
			continue
		}
		if _, ok := validator.IsValidDate(*v); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   field,
				Message: field + " must be in YYYY-MM-DD format",
			})
		}
	}
	if r.Date != nil && (r.StartDate != nil || r.EndDate != nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date cannot be combined with start_date/end_date",
		})
	}
	if (r.StartDate == nil) != (r.EndDate == nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "start_date and end_date must be provided together",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ListRequest is the raw query accepted by the absence listing endpoint
type ListRequest struct {
	StartDate *string
	EndDate   *string
	Page      int
	Limit     int
}

func (r *ListRequest) Validate() error {
	var errs validator.ValidationErrors

	for field, v := range map[string]*string{"start_date": r.StartDate, "end_date": r.EndDate} {
		if v == nil {
			continue
		}
		if _, ok := validator.IsValidDate(*v); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   field,
				Message: field + " must be in YYYY-MM-DD format",
			})
		}
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 100
	}
	if r.Limit > 500 {
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

type Filter struct {
	From  civil.Date
	To    civil.Date
	Page  int
	Limit int
}

type AbsenceResponse struct {
	ID           string     `json:"id"`
	EmployeeCode string     `json:"emp_code"`
	EmployeeName string     `json:"first_name"`
	Date         civil.Date `json:"date"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ListAbsenceResponse struct {
	Absences   []AbsenceResponse `json:"absences"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func ToResponse(r AbsenceRecord) AbsenceResponse {
	return AbsenceResponse{
		ID:           r.ID,
		EmployeeCode: r.EmployeeCode,
		EmployeeName: r.EmployeeName,
		Date:         r.Date,
		Reason:       r.Reason,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
}
