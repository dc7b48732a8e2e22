package employee

import "time"

// Employee is a directory entry mirrored from the device's personnel list.
// Excluded is owned here and only changed through SetExcluded; directory sync
// never writes it.
type Employee struct {
	EmployeeCode    string
	DisplayName     string
	Department      string
	Position        string
	Excluded        bool
	DeletedOnDevice bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the employee takes part in absence tracking.
func (e Employee) IsActive() bool {
	return !e.Excluded && !e.DeletedOnDevice
}
