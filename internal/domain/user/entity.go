package user

import "time"

// User is a dashboard account. Attendance data is read through these accounts;
// only admins may trigger syncs or change the directory.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
