package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type EmployeeHandler interface {
	ListEmployees(w http.ResponseWriter, r *http.Request)
	SetExclusion(w http.ResponseWriter, r *http.Request)
	SyncDirectory(w http.ResponseWriter, r *http.Request)
}

type employeeHandlerImpl struct {
	employeeService employee.EmployeeService
}

func NewEmployeeHandler(employeeService employee.EmployeeService) EmployeeHandler {
	return &employeeHandlerImpl{
		employeeService: employeeService,
	}
}

// ListEmployees implements EmployeeHandler.
func (h *employeeHandlerImpl) ListEmployees(w http.ResponseWriter, r *http.Request) {
	filter := employee.Filter{
		Search:   getStringQueryParam(r, "search"),
		Excluded: getBoolQueryParam(r, "excluded"),
		Page:     getIntQueryParam(r, "page", 1),
		Limit:    getIntQueryParam(r, "limit", 50),
	}

	result, err := h.employeeService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// SetExclusion implements EmployeeHandler.
func (h *employeeHandlerImpl) SetExclusion(w http.ResponseWriter, r *http.Request) {
	var req employee.SetExclusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("SetExclusion decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeCode = chi.URLParam(r, "code")

	result, err := h.employeeService.SetExcluded(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Employee exclusion updated", result)
}

// SyncDirectory implements EmployeeHandler.
func (h *employeeHandlerImpl) SyncDirectory(w http.ResponseWriter, r *http.Request) {
	result, err := h.employeeService.SyncDirectory(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Employee directory synced", result)
}
