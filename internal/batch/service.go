package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/aba"
	"github.com/stonecrest/achgen/internal/entry"
	"github.com/stonecrest/achgen/internal/vault"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=batch
type Repository interface {
	CreateBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	ListBatches(ctx context.Context, filter ListFilter) ([]*Batch, error)
	UpdateBatchStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateTotals(ctx context.Context, id uuid.UUID, totals Totals) error

	CreateEntry(ctx context.Context, e *entry.Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	// ListEntries returns the batch's live (non-cancelled) entries in
	// insertion order. Insertion order determines render order.
	ListEntries(ctx context.Context, batchID uuid.UUID) ([]*entry.Entry, error)
	UpdateEntryStatus(ctx context.Context, id uuid.UUID, status entry.Status) error

	// AllocateTrace durably reserves the next trace number for the given
	// 8-digit originator routing number. Implementations must hold an
	// exclusive lock on the counter for the whole read-increment-compose
	// sequence and return entry.ErrTraceExhausted past 9,999,999.
	AllocateTrace(ctx context.Context, routing8 string) (string, error)
}

type ListFilter struct {
	Status        *Status
	EffectiveDate *time.Time
}

// Service owns batch and entry mutations. The originator routing number
// scopes trace allocation; the vault encrypts account numbers before they
// reach the repository.
type Service struct {
	repo          Repository
	vault         vault.Vault
	originRouting string // 8 digits
}

func NewService(repo Repository, v vault.Vault, originRouting8 string) *Service {
	return &Service{repo: repo, vault: v, originRouting: originRouting8}
}

type OpenParams struct {
	EffectiveDate time.Time
	SECCode       SECCode
	Description   string
}

// Open creates a batch in pending status. The batch number is assigned by
// the repository under the same counter discipline as trace numbers.
func (s *Service) Open(ctx context.Context, params OpenParams) (*Batch, error) {
	if !params.SECCode.Valid() {
		return nil, fmt.Errorf("unsupported SEC code %q", params.SECCode)
	}

	if len(params.Description) > 10 {
		return nil, fmt.Errorf("%w: description %q longer than 10", ErrOversizedField, params.Description)
	}

	b := &Batch{
		SECCode:       params.SECCode,
		Description:   params.Description,
		EffectiveDate: params.EffectiveDate,
		Status:        StatusPending,
		EntryHash:     "0000000000",
	}

	if err := s.repo.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	return b, nil
}

type AddEntryParams struct {
	Direction     entry.Direction
	AccountType   entry.AccountType
	RoutingNumber string // 9 digits
	AccountNumber string // plaintext, encrypted before persistence
	AmountCents   int64
	PayeeName     string // <= 22 chars
	IndividualID  string // <= 15 chars
	IsBusiness    bool
	ExternalRef   string
}

// AddEntry validates the instruction, allocates a trace number, persists the
// entry, and recalculates the batch totals. Only pending batches accept
// entries.
func (s *Service) AddEntry(ctx context.Context, batchID uuid.UUID, params AddEntryParams) (*entry.Entry, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if b.Status != StatusPending {
		return nil, fmt.Errorf("%w: batch %s is %s", ErrBatchClosed, b.BatchNumber, b.Status)
	}

	if err := validateInstruction(params); err != nil {
		return nil, err
	}

	code, err := entry.TransactionCode(params.AccountType, params.Direction)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.vault.Encrypt(params.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypting account number: %w", err)
	}

	trace, err := s.repo.AllocateTrace(ctx, s.originRouting)
	if err != nil {
		return nil, fmt.Errorf("allocating trace number: %w", err)
	}

	e := &entry.Entry{
		BatchID:           batchID,
		TransactionCode:   code,
		RoutingNumber:     params.RoutingNumber,
		AccountCiphertext: ciphertext,
		AmountCents:       params.AmountCents,
		PayeeName:         params.PayeeName,
		IndividualID:      params.IndividualID,
		TraceNumber:       trace,
		IsBusiness:        params.IsBusiness,
		Status:            entry.StatusPending,
		ExternalRef:       params.ExternalRef,
	}

	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	if _, err := s.RecalculateTotals(ctx, batchID); err != nil {
		return nil, err
	}

	return e, nil
}

// RecalculateTotals recomputes entry count, debit/credit totals, and the
// entry hash strictly from the batch's current entry set and persists them.
func (s *Service) RecalculateTotals(ctx context.Context, batchID uuid.UUID) (Totals, error) {
	entries, err := s.repo.ListEntries(ctx, batchID)
	if err != nil {
		return Totals{}, fmt.Errorf("listing entries: %w", err)
	}

	totals := ComputeTotals(entries)
	if err := s.repo.UpdateTotals(ctx, batchID, totals); err != nil {
		return Totals{}, fmt.Errorf("updating totals: %w", err)
	}

	return totals, nil
}

// ComputeTotals derives batch totals from an entry set.
func ComputeTotals(entries []*entry.Entry) Totals {
	totals := Totals{EntryCount: len(entries)}

	routings := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.Direction() == entry.Debit {
			totals.TotalDebitCents += e.AmountCents
		} else {
			totals.TotalCreditCents += e.AmountCents
		}

		routings = append(routings, e.RoutingID())
	}

	totals.EntryHash = aba.EntryHash(routings)

	return totals
}

// MarkReady locks the batch's totals and transitions it to ready.
func (s *Service) MarkReady(ctx context.Context, batchID uuid.UUID) (*Batch, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if b.Status != StatusPending {
		return nil, fmt.Errorf("%w: batch %s is %s", ErrBatchClosed, b.BatchNumber, b.Status)
	}

	totals, err := s.RecalculateTotals(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if totals.EntryCount == 0 {
		return nil, fmt.Errorf("%w: batch %s", ErrEmptyBatch, b.BatchNumber)
	}

	if err := s.repo.UpdateBatchStatus(ctx, batchID, StatusReady); err != nil {
		return nil, fmt.Errorf("marking batch ready: %w", err)
	}

	b.EntryCount = totals.EntryCount
	b.TotalDebitCents = totals.TotalDebitCents
	b.TotalCreditCents = totals.TotalCreditCents
	b.EntryHash = totals.EntryHash
	b.Status = StatusReady

	return b, nil
}

// CancelEntry cancels a pending entry in a pending batch and refreshes the
// batch totals.
func (s *Service) CancelEntry(ctx context.Context, batchID, entryID uuid.UUID) error {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}

	if b.Status != StatusPending {
		return fmt.Errorf("%w: batch %s is %s", ErrBatchClosed, b.BatchNumber, b.Status)
	}

	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}

	if e.BatchID != batchID {
		return entry.ErrNotFound
	}

	if e.Status != entry.StatusPending {
		return fmt.Errorf("%w: entry is %s", entry.ErrNotCancellable, e.Status)
	}

	if err := s.repo.UpdateEntryStatus(ctx, entryID, entry.StatusCancelled); err != nil {
		return fmt.Errorf("cancelling entry: %w", err)
	}

	if _, err := s.RecalculateTotals(ctx, batchID); err != nil {
		return err
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Batch, error) {
	return s.repo.ListBatches(ctx, filter)
}

// Entries returns a batch's live entries in insertion order.
func (s *Service) Entries(ctx context.Context, batchID uuid.UUID) ([]*entry.Entry, error) {
	return s.repo.ListEntries(ctx, batchID)
}

func validateInstruction(params AddEntryParams) error {
	if !aba.ValidateRouting(params.RoutingNumber) {
		return fmt.Errorf("%w: %q", ErrInvalidRouting, params.RoutingNumber)
	}

	if params.AmountCents <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, params.AmountCents)
	}

	if len(params.PayeeName) > 22 {
		return fmt.Errorf("%w: payee name %q longer than 22", ErrOversizedField, params.PayeeName)
	}

	if len(params.IndividualID) > 15 {
		return fmt.Errorf("%w: individual id %q longer than 15", ErrOversizedField, params.IndividualID)
	}

	if params.AccountNumber == "" || len(params.AccountNumber) > 17 {
		return fmt.Errorf("%w: account number must be 1-17 chars", ErrOversizedField)
	}

	return nil
}
