package attendance

import (
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

const maxRangeDays = 366

// ========================================
// ATTENDANCE DTOs
// ========================================

// ListRequest is the raw query accepted by the attendance listing endpoint
type ListRequest struct {
	EmployeeCode *string
	Date         *string
	StartDate    *string
	EndDate      *string
	Page         int
	Limit        int
}

func (r *ListRequest) Validate() error {
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
	if r.EmployeeCode != nil && !validator.IsValidEmployeeCode(*r.EmployeeCode) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code must be alphanumeric",
		})
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 20
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

// Filter is the resolved repository query
type Filter struct {
	EmployeeCode *string
	From         civil.Date
	To           civil.Date
	Page         int
	Limit        int
}

// ResolveRange turns optional date/start/end strings into an inclusive range,
// defaulting to today. It assumes the strings were validated.
func ResolveRange(date, start, end *string, today civil.Date) (civil.Date, civil.Date, error) {
	if date != nil {
		d, err := civil.Parse(*date)
		return d, d, err
	}

	from, to := today, today
	var err error
	if start != nil {
		if from, err = civil.Parse(*start); err != nil {
			return civil.Date{}, civil.Date{}, err
		}
		if end == nil {
			to = from
		}
	}
	if end != nil {
		if to, err = civil.Parse(*end); err != nil {
			return civil.Date{}, civil.Date{}, err
		}
		if start == nil {
			from = to
		}
	}
	if from.After(to) {
		return civil.Date{}, civil.Date{}, ErrInvalidDateRange
	}
	if len(civil.Range(from, to)) > maxRangeDays {
		return civil.Date{}, civil.Date{}, ErrDateRangeTooLong
	}
	return from, to, nil
}

type MarkResponse struct {
	Time   string `json:"time"`
	Status Status `json:"status"`
}

type AttendanceDayResponse struct {
	EmployeeCode string        `json:"emp_code"`
	EmployeeName string        `json:"first_name"`
	Date         civil.Date    `json:"date"`
	CheckIn      *MarkResponse `json:"checkIn,omitempty"`
	CheckOut     *MarkResponse `json:"checkOut,omitempty"`
	TotalHours   float64       `json:"totalHours"`
	PunchCount   int           `json:"punch_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type ListAttendanceResponse struct {
	Days       []AttendanceDayResponse `json:"days"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"total_pages"`
}

// StatusCounts aggregates attendance days over a range
type StatusCounts struct {
	Present  int64 `json:"present"`
	Late     int64 `json:"late"`
	EarlyOut int64 `json:"early_out"`
}

type SummaryResponse struct {
	From     civil.Date `json:"from"`
	To       civil.Date `json:"to"`
	Present  int64      `json:"present"`
	Late     int64      `json:"late"`
	EarlyOut int64      `json:"early_out"`
	Absent   int64      `json:"absent"`
}

// ToResponse renders clock times in loc as "15:04".
func ToResponse(d AttendanceDay, loc *time.Location) AttendanceDayResponse {
	resp := AttendanceDayResponse{
		EmployeeCode: d.EmployeeCode,
		EmployeeName: d.EmployeeName,
		Date:         d.Date,
		TotalHours:   d.TotalHours,
		PunchCount:   d.PunchCount,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.CheckIn != nil {
		resp.CheckIn = &MarkResponse{Time: d.CheckIn.Time.In(loc).Format("15:04"), Status: d.CheckIn.Status}
	}
	if d.CheckOut != nil {
		resp.CheckOut = &MarkResponse{Time: d.CheckOut.Time.In(loc).Format("15:04"), Status: d.CheckOut.Status}
	}
	return resp
}
