package http

import (
	"net/http"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/response"
)

type AbsenceHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
}

type absenceHandlerImpl struct {
	reconciler absence.Reconciler
}

func NewAbsenceHandler(reconciler absence.Reconciler) AbsenceHandler {
	return &absenceHandlerImpl{
		reconciler: reconciler,
	}
}

// List implements AbsenceHandler.
func (h *absenceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	req := absence.ListRequest{
		StartDate: getStringQueryParam(r, "start_date"),
		EndDate:   getStringQueryParam(r, "end_date"),
		Page:      getIntQueryParam(r, "page", 1),
		Limit:     getIntQueryParam(r, "limit", 100),
	}

	result, err := h.reconciler.ListAbsences(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Reconcile runs reconciliation on demand: today by default, ?date= for one
// day, or ?start_date=&end_date= for a range.
func (h *absenceHandlerImpl) Reconcile(w http.ResponseWriter, r *http.Request) {
	req := absence.ReconcileRequest{
		Date:      getStringQueryParam(r, "date"),
		StartDate: getStringQueryParam(r, "start_date"),
		EndDate:   getStringQueryParam(r, "end_date"),
	}

	result, err := h.reconciler.Trigger(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Absence reconciliation completed", result)
}
