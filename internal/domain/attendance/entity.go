package attendance

import (
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

type Status string

const (
	StatusPresent  Status = "Present"
	StatusLate     Status = "Late"
	StatusEarlyOut Status = "Early Out"
	StatusCheckout Status = "Checkout"
)

// IsPresence reports whether a check-in status counts as presence for
// absence reconciliation.
func (s Status) IsPresence() bool {
	return s == StatusPresent || s == StatusLate
}

// Mark is a derived check-in or check-out.
type Mark struct {
	Time   time.Time
	Status Status
}

// AttendanceDay is the single aggregate per (employee, civil date). It is only
// ever written by recomputing it from that day's punches.
type AttendanceDay struct {
	EmployeeCode string
	Date         civil.Date
	EmployeeName string
	CheckIn      *Mark
	CheckOut     *Mark
	TotalHours   float64
	PunchCount   int
	UpdatedAt    time.Time
}

func (d AttendanceDay) IsPresent() bool {
	return d.CheckIn != nil && d.CheckIn.Status.IsPresence()
}

// Key identifies an attendance day.
type Key struct {
	EmployeeCode string
	Date         civil.Date
}
