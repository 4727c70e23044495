package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/batch"
	"github.com/stonecrest/achgen/internal/entry"
)

type batchResponse struct {
	ID               uuid.UUID     `json:"id"`
	BatchNumber      string        `json:"batch_number"`
	SECCode          batch.SECCode `json:"sec_code"`
	Description      string        `json:"description"`
	EffectiveDate    string        `json:"effective_date"`
	EntryCount       int           `json:"entry_count"`
	TotalDebitCents  int64         `json:"total_debit_cents"`
	TotalCreditCents int64         `json:"total_credit_cents"`
	EntryHash        string        `json:"entry_hash"`
	Status           batch.Status  `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
}

func toBatchResponse(b *batch.Batch) batchResponse {
	return batchResponse{
		ID:               b.ID,
		BatchNumber:      b.BatchNumber,
		SECCode:          b.SECCode,
		Description:      b.Description,
		EffectiveDate:    b.EffectiveDate.Format(time.DateOnly),
		EntryCount:       b.EntryCount,
		TotalDebitCents:  b.TotalDebitCents,
		TotalCreditCents: b.TotalCreditCents,
		EntryHash:        b.EntryHash,
		Status:           b.Status,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// entryResponse never carries the account number, encrypted or otherwise.
type entryResponse struct {
	ID              uuid.UUID    `json:"id"`
	BatchID         uuid.UUID    `json:"batch_id"`
	TransactionCode string       `json:"transaction_code"`
	RoutingNumber   string       `json:"routing_number"`
	AmountCents     int64        `json:"amount_cents"`
	PayeeName       string       `json:"payee_name"`
	IndividualID    string       `json:"individual_id"`
	TraceNumber     string       `json:"trace_number"`
	IsBusiness      bool         `json:"is_business"`
	Status          entry.Status `json:"status"`
	ReturnCode      string       `json:"return_code,omitempty"`
	ExternalRef     string       `json:"external_ref,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toEntryResponse(e *entry.Entry) entryResponse {
	return entryResponse{
		ID:              e.ID,
		BatchID:         e.BatchID,
		TransactionCode: e.TransactionCode,
		RoutingNumber:   e.RoutingNumber,
		AmountCents:     e.AmountCents,
		PayeeName:       e.PayeeName,
		IndividualID:    e.IndividualID,
		TraceNumber:     e.TraceNumber,
		IsBusiness:      e.IsBusiness,
		Status:          e.Status,
		ReturnCode:      e.ReturnCode,
		ExternalRef:     e.ExternalRef,
		CreatedAt:       e.CreatedAt,
	}
}
