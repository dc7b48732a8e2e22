package absence

import (
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
)

const (
	ReasonNoCheckIn = "No CheckIn"
	StatusAbsent    = "Absent"
)

// AbsenceRecord marks an active employee without a qualifying check-in on a day.
// At most one exists per (employee_code, date).
type AbsenceRecord struct {
	ID           string
	EmployeeCode string
	EmployeeName string
	Date         civil.Date
	Reason       string
	Status       string
	CreatedAt    time.Time
}
