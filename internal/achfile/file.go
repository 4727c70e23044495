// Package achfile owns the rendered file artifact: generation, integrity
// verification, and the daily file-ID modifier sequence.
package achfile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("file not found")

	// ErrModifierExhausted means all 36 file-ID modifiers (A-Z then 0-9)
	// for one calendar day are used. The range resets the next day; it
	// never wraps within a day.
	ErrModifierExhausted = errors.New("daily file ID modifier range exhausted")

	// ErrAlreadyGenerated means a batch already rendered into a file was
	// offered for generation again. Files are immutable; regeneration
	// always means a new artifact from new batches.
	ErrAlreadyGenerated = errors.New("batch already generated into a file")

	// ErrIntegrityMismatch means the stored hash no longer matches the
	// stored text. The artifact is untrustworthy and needs manual review.
	ErrIntegrityMismatch = errors.New("stored file hash does not match its text")
)

// ModifierSequence is the daily file-ID modifier order.
const ModifierSequence = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Status represents the lifecycle state of a file artifact.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerated  Status = "generated"
	StatusSubmitted  Status = "submitted"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// File is one rendered NACHA artifact. Once generated it is immutable:
// failures create new artifacts rather than mutating this one.
type File struct {
	ID                uuid.UUID
	Filename          string
	Modifier          string // single character from ModifierSequence
	BatchCount        int
	EntryAddendaCount int
	TotalDebitCents   int64
	TotalCreditCents  int64
	Text              string
	SHA256            string
	Status            Status
	BatchIDs          []uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}
