package punch

import (
	"encoding/json"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

// Window is a closed-open instant range to pull from the device.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// SyncResult summarises one ingestion run.
type SyncResult struct {
	Pages          int `json:"pages"`
	Fetched        int `json:"fetched"`
	Saved          int `json:"saved"`
	Skipped        int `json:"skipped"`
	DaysRecomputed int `json:"days_recomputed"`
}

// Filter is used by the dashboard's punch listing.
type Filter struct {
	// Date is the civil day to list, resolved in the reference timezone
	Date   civil.Date
	From   time.Time
	To     time.Time
	Search *string
	State  *string
	Page   int
	Limit  int
}

// ListRequest is the raw query accepted by the punch listing endpoint
type ListRequest struct {
	Date   *string
	Search *string
	State  *string
	Page   int
	Limit  int
}

func (r *ListRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Date != nil {
		if _, ok := validator.IsValidDate(*r.Date); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 10
	}
	if r.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PunchResponse struct {
	ID            int64           `json:"id"`
	EmployeeCode  string          `json:"emp_code"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	PunchTime     time.Time       `json:"punch_time"`
	StateLabel    string          `json:"punch_state_display"`
	VerifyType    string          `json:"verify_type_display,omitempty"`
	TerminalAlias string          `json:"terminal_alias,omitempty"`
	UploadTime    *time.Time      `json:"upload_time,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

type ListPunchResponse struct {
	Punches    []PunchResponse `json:"punches"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

func ToResponse(p Punch) PunchResponse {
	return PunchResponse{
		ID:            p.ID,
		EmployeeCode:  p.EmployeeCode,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		PunchTime:     p.PunchTime,
		StateLabel:    p.StateLabel,
		VerifyType:    p.VerifyType,
		TerminalAlias: p.TerminalAlias,
		UploadTime:    p.UploadTime,
		Raw:           p.Raw,
	}
}
