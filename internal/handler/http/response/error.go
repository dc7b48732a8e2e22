package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/auth"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Device controller errors never leak upstream details
	var authErr *biotime.AuthenticationError
	var extErr *biotime.ExternalServiceError
	if errors.As(err, &authErr) || errors.As(err, &extErr) {
		slog.Error("BioTime request failed", "error", err)
		BadGateway(w, "Attendance device controller is unavailable")
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, user.ErrAdminPrivilegeRequired):
		Forbidden(w, "Admin privilege required")

	// Punch domain errors
	case errors.Is(err, punch.ErrWebhookUnauthorized):
		Unauthorized(w, "Invalid webhook secret")
	case errors.Is(err, punch.ErrInvalidWindow):
		BadRequest(w, err.Error(), nil)

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrInvalidEmployeeCode):
		BadRequest(w, err.Error(), nil)

	// Attendance and absence range errors
	case errors.Is(err, attendance.ErrInvalidDateRange),
		errors.Is(err, attendance.ErrDateRangeTooLong),
		errors.Is(err, absence.ErrFutureDate),
		errors.Is(err, absence.ErrInvalidDateRange),
		errors.Is(err, absence.ErrDateRangeTooLong):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
