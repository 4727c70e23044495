package batch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/batch"
	"github.com/stonecrest/achgen/internal/entry"
)

type Handler struct {
	svc *batch.Service
}

func NewHandler(svc *batch.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.open)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/ready", h.markReady)
	r.Post("/{id}/entries", h.addEntry)
	r.Get("/{id}/entries", h.listEntries)
	r.Delete("/{id}/entries/{entryID}", h.cancelEntry)
}

type openBatchRequest struct {
	EffectiveDate string        `json:"effective_date"` // YYYY-MM-DD
	SECCode       batch.SECCode `json:"sec_code"`
	Description   string        `json:"description"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	effectiveDate, err := time.Parse(time.DateOnly, req.EffectiveDate)
	if err != nil {
		http.Error(w, "effective_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Open(r.Context(), batch.OpenParams{
		EffectiveDate: effectiveDate,
		SECCode:       req.SECCode,
		Description:   req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBatchResponse(b))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := batch.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := batch.Status(s)
		filter.Status = &status
	}

	batches, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]batchResponse, len(batches))
	for i, b := range batches {
		resp[i] = toBatchResponse(b)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.MarkReady(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

type addEntryRequest struct {
	Direction     entry.Direction   `json:"direction"`
	AccountType   entry.AccountType `json:"account_type"`
	RoutingNumber string            `json:"routing_number"`
	AccountNumber string            `json:"account_number"`
	AmountCents   int64             `json:"amount_cents"`
	PayeeName     string            `json:"payee_name"`
	IndividualID  string            `json:"individual_id"`
	IsBusiness    bool              `json:"is_business"`
	ExternalRef   string            `json:"external_ref"`
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, err := h.svc.AddEntry(r.Context(), id, batch.AddEntryParams{
		Direction:     req.Direction,
		AccountType:   req.AccountType,
		RoutingNumber: req.RoutingNumber,
		AccountNumber: req.AccountNumber,
		AmountCents:   req.AmountCents,
		PayeeName:     req.PayeeName,
		IndividualID:  req.IndividualID,
		IsBusiness:    req.IsBusiness,
		ExternalRef:   req.ExternalRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	entries, err := h.svc.Entries(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toEntryResponse(e)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	if err := h.svc.CancelEntry(r.Context(), id, entryID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, batch.ErrNotFound), errors.Is(err, entry.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, batch.ErrBatchClosed),
		errors.Is(err, batch.ErrEmptyBatch),
		errors.Is(err, entry.ErrNotCancellable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, batch.ErrInvalidRouting),
		errors.Is(err, batch.ErrInvalidAmount),
		errors.Is(err, batch.ErrOversizedField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("batch handler error", "error", err)
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
