package absence

import "errors"

var (
	ErrFutureDate       = errors.New("cannot reconcile a date in the future")
	ErrInvalidDateRange = errors.New("start_date must not be after end_date")
	ErrDateRangeTooLong = errors.New("date range must not exceed 31 days")
)
