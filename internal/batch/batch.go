// Package batch implements the batch aggregate: a set of entries sharing
// one effective date, one SEC code, and one originator identity.
package batch

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("batch not found")

	// ErrBatchClosed means the batch is no longer in pending status and
	// cannot accept or cancel entries.
	ErrBatchClosed = errors.New("batch is not accepting entries")

	// ErrEmptyBatch means a batch with zero live entries was asked to
	// transition towards file generation.
	ErrEmptyBatch = errors.New("batch has no entries")

	ErrInvalidRouting = errors.New("routing number fails ABA checksum")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrOversizedField = errors.New("field exceeds NACHA width")
)

// SECCode is the Standard Entry Class code describing a batch's
// authorization method.
type SECCode string

const (
	SECWeb SECCode = "WEB"
	SECPPD SECCode = "PPD"
	SECCCD SECCode = "CCD"
	SECTel SECCode = "TEL"
)

// Valid reports whether the code is one of the supported SEC codes.
func (c SECCode) Valid() bool {
	switch c {
	case SECWeb, SECPPD, SECCCD, SECTel:
		return true
	default:
		return false
	}
}

// Status represents the lifecycle state of a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusGenerated Status = "generated"
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
)

// Batch groups entries for one NACHA batch block. Totals and the entry hash
// are derived columns, recalculated from the full entry set on every
// mutation rather than incrementally.
type Batch struct {
	ID               uuid.UUID
	BatchNumber      string // 7 digits, wraps at 10^7
	SECCode          SECCode
	Description      string // company entry description, <= 10 chars
	EffectiveDate    time.Time
	EntryCount       int
	TotalDebitCents  int64
	TotalCreditCents int64
	EntryHash        string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// Totals is the derived state recalculated from a batch's entry set.
type Totals struct {
	EntryCount       int
	TotalDebitCents  int64
	TotalCreditCents int64
	EntryHash        string
}
