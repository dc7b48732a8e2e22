package attendance

import "errors"

// Attendance domain errors
var (
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrInvalidDateRange   = errors.New("start_date must not be after end_date")
	ErrDateRangeTooLong   = errors.New("date range must not exceed 366 days")
)
