package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/response"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/validator"
)

// maxWebhookBody bounds a pushed payload
const maxWebhookBody = 1 << 20

type PunchHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Sync(w http.ResponseWriter, r *http.Request)
	Webhook(w http.ResponseWriter, r *http.Request)
}

type punchHandlerImpl struct {
	punchService punch.PunchService
	loc          *time.Location
}

func NewPunchHandler(punchService punch.PunchService, loc *time.Location) PunchHandler {
	return &punchHandlerImpl{
		punchService: punchService,
		loc:          loc,
	}
}

// List implements PunchHandler.
func (h *punchHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	req := punch.ListRequest{
		Date:   getStringQueryParam(r, "date"),
		Search: getStringQueryParam(r, "search"),
		State:  getStringQueryParam(r, "state"),
		Page:   getIntQueryParam(r, "page", 1),
		Limit:  getIntQueryParam(r, "limit", 10),
	}

	result, err := h.punchService.ListPunches(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Sync pulls today's punches, or one past day with ?date=YYYY-MM-DD
func (h *punchHandlerImpl) Sync(w http.ResponseWriter, r *http.Request) {
	var (
		result punch.SyncResult
		err    error
	)

	if date := getStringQueryParam(r, "date"); date != nil {
		if _, ok := validator.IsValidDate(*date); !ok {
			response.HandleError(w, validator.ValidationErrors{{Field: "date", Message: "date must be in YYYY-MM-DD format"}})
			return
		}
		day, _ := civil.Parse(*date)
		start, end := day.Bounds(h.loc)
		result, err = h.punchService.SyncWindow(r.Context(), punch.Window{Start: start, End: end})
	} else {
		result, err = h.punchService.SyncToday(r.Context())
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Punch sync completed", result)
}

// Webhook accepts one transaction object or an array of them pushed by the device
func (h *punchHandlerImpl) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Failed to read request body", nil)
		return
	}

	var raws []json.RawMessage
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &raws)
	case len(trimmed) > 0 && trimmed[0] == '{':
		raws = []json.RawMessage{trimmed}
	default:
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err != nil {
		slog.Error("Webhook decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	records := make([]punch.Punch, 0, len(raws))
	for _, raw := range raws {
		records = append(records, biotime.ParseTransaction(raw, h.loc))
	}

	result, err := h.punchService.IngestWebhook(r.Context(), records)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
