package http

import (
	"net/http"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/response"
)

type AttendanceHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := attendance.ListRequest{
		EmployeeCode: getStringQueryParam(r, "employee_code"),
		Date:         getStringQueryParam(r, "date"),
		StartDate:    getStringQueryParam(r, "start_date"),
		EndDate:      getStringQueryParam(r, "end_date"),
		Page:         getIntQueryParam(r, "page", 1),
		Limit:        getIntQueryParam(r, "limit", 20),
	}

	results, err := h.attendanceService.ListDays(ctx, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Summary implements AttendanceHandler.
func (h *attendanceHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	result, err := h.attendanceService.Summary(r.Context(), getStringQueryParam(r, "start_date"), getStringQueryParam(r, "end_date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
