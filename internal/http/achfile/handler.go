package achfile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/achfile"
	"github.com/stonecrest/achgen/internal/batch"
)

type Handler struct {
	svc *achfile.Service
}

func NewHandler(svc *achfile.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.generate)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/verify", h.verify)
	r.Patch("/{id}/status", h.updateStatus)
}

type generateRequest struct {
	BatchIDs []uuid.UUID `json:"batch_ids"`
}

// fileResponse is the (filename, text, hash) triple handed to the storage
// and upload collaborators, plus the control totals.
type fileResponse struct {
	ID                uuid.UUID      `json:"id"`
	Filename          string         `json:"filename"`
	Modifier          string         `json:"modifier"`
	BatchCount        int            `json:"batch_count"`
	EntryAddendaCount int            `json:"entry_addenda_count"`
	TotalDebitCents   int64          `json:"total_debit_cents"`
	TotalCreditCents  int64          `json:"total_credit_cents"`
	Text              string         `json:"text,omitempty"`
	SHA256            string         `json:"sha256"`
	Status            achfile.Status `json:"status"`
	BatchIDs          []uuid.UUID    `json:"batch_ids,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

func toResponse(f *achfile.File, includeText bool) fileResponse {
	resp := fileResponse{
		ID:                f.ID,
		Filename:          f.Filename,
		Modifier:          f.Modifier,
		BatchCount:        f.BatchCount,
		EntryAddendaCount: f.EntryAddendaCount,
		TotalDebitCents:   f.TotalDebitCents,
		TotalCreditCents:  f.TotalCreditCents,
		SHA256:            f.SHA256,
		Status:            f.Status,
		BatchIDs:          f.BatchIDs,
		CreatedAt:         f.CreatedAt,
	}

	if includeText {
		resp.Text = f.Text
	}

	return resp
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, err := h.svc.Generate(r.Context(), req.BatchIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(f, true))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]fileResponse, len(files))
	for i, f := range files {
		resp[i] = toResponse(f, false)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	f, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(f, true))
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Verify(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status achfile.Status `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, achfile.ErrNotFound), errors.Is(err, batch.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, batch.ErrEmptyBatch),
		errors.Is(err, batch.ErrBatchClosed),
		errors.Is(err, achfile.ErrAlreadyGenerated),
		errors.Is(err, achfile.ErrModifierExhausted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, achfile.ErrIntegrityMismatch):
		slog.Error("file integrity mismatch", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		slog.Error("file handler error", "error", err)
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
