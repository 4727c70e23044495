package returns

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/returns"
)

type Handler struct {
	svc *returns.Service
}

func NewHandler(svc *returns.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.ingest)
	r.Post("/import", h.importFile)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/apply", h.apply)
	r.Post("/{id}/review", h.review)
	r.Post("/{id}/resolve", h.resolve)
}

type ingestRequest struct {
	TraceNumber   string `json:"trace_number"`
	OriginalTrace string `json:"original_trace"`
	ReturnDate    string `json:"return_date"` // YYYY-MM-DD
	Code          string `json:"code"`
	CorrectedData string `json:"corrected_data"`
	Dishonored    bool   `json:"dishonored"`
	Contested     bool   `json:"contested"`
}

type recordResponse struct {
	ID            uuid.UUID      `json:"id"`
	TraceNumber   string         `json:"trace_number"`
	OriginalTrace string         `json:"original_trace"`
	ReturnDate    string         `json:"return_date"`
	Type          returns.Type   `json:"type"`
	Code          string         `json:"code"`
	Description   string         `json:"description"`
	CorrectedData string         `json:"corrected_data,omitempty"`
	Status        returns.Status `json:"status"`
	EntryID       *uuid.UUID     `json:"entry_id,omitempty"`
	HardReturn    bool           `json:"hard_return"`
	Retriable     bool           `json:"retriable"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toResponse(r *returns.Record) recordResponse {
	return recordResponse{
		ID:            r.ID,
		TraceNumber:   r.TraceNumber,
		OriginalTrace: r.OriginalTrace,
		ReturnDate:    r.ReturnDate.Format(time.DateOnly),
		Type:          r.Type,
		Code:          r.Code,
		Description:   r.Description,
		CorrectedData: r.CorrectedData,
		Status:        r.Status,
		EntryID:       r.EntryID,
		HardReturn:    returns.IsHardReturn(r.Code),
		Retriable:     returns.IsRetriable(r.Code),
		CreatedAt:     r.CreatedAt,
	}
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	returnDate, err := time.Parse(time.DateOnly, req.ReturnDate)
	if err != nil {
		http.Error(w, "return_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Ingest(r.Context(), returns.IngestParams{
		TraceNumber:   req.TraceNumber,
		OriginalTrace: req.OriginalTrace,
		ReturnDate:    returnDate,
		Code:          req.Code,
		CorrectedData: req.CorrectedData,
		Dishonored:    req.Dishonored,
		Contested:     req.Contested,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// importFile ingests a raw NACHA return file as delivered by the bank.
func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.IngestFile(r.Context(), r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = toResponse(rec)
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := returns.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := returns.Status(s)
		filter.Status = &status
	}

	records, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = toResponse(rec)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.Apply(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Review)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Resolve)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := fn(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, returns.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, returns.ErrUnknownTrace):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, returns.ErrInvalidCode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("returns handler error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
