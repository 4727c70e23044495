package achfile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/aba"
	"github.com/stonecrest/achgen/internal/batch"
	"github.com/stonecrest/achgen/internal/entry"
	"github.com/stonecrest/achgen/internal/metrics"
	"github.com/stonecrest/achgen/internal/nacha"
	"github.com/stonecrest/achgen/internal/vault"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=achfile
type Repository interface {
	// AllocateModifier durably reserves the next file-ID modifier for the
	// given calendar day under an exclusive counter lock, returning
	// ErrModifierExhausted once the 36-character range is used up.
	AllocateModifier(ctx context.Context, day time.Time) (byte, error)

	CreateFile(ctx context.Context, f *File) error
	// FinalizeFile stamps the rendered text, hash, and totals, marks the
	// file generated, the batches generated, and their entries submitted,
	// all in one transaction.
	FinalizeFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)
	ListFiles(ctx context.Context) ([]*File, error)
	UpdateFileStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// Service renders ready batches into immutable file artifacts.
type Service struct {
	repo    Repository
	batches *batch.Service
	vault   vault.Vault
	orig    nacha.Originator
	traces  nacha.TraceSource
	now     func() time.Time
}

func NewService(repo Repository, batches *batch.Service, v vault.Vault, orig nacha.Originator, traces nacha.TraceSource) *Service {
	return &Service{
		repo:    repo,
		batches: batches,
		vault:   v,
		orig:    orig,
		traces:  traces,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin filenames and
// rendered creation timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate renders the given batches into one NACHA file. Pending batches
// are marked ready first (which rejects empty ones); batches already part
// of a file are rejected. The whole operation is additive: a failure at any
// point leaves no generated artifact behind.
func (s *Service) Generate(ctx context.Context, batchIDs []uuid.UUID) (*File, error) {
	if len(batchIDs) == 0 {
		return nil, fmt.Errorf("%w: no batches supplied", batch.ErrEmptyBatch)
	}

	var (
		entries       []nacha.Entry
		effectiveDate time.Time
		description   string
	)

	for i, id := range batchIDs {
		b, err := s.batches.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		switch b.Status {
		case batch.StatusPending:
			if b, err = s.batches.MarkReady(ctx, id); err != nil {
				return nil, err
			}
		case batch.StatusReady:
		default:
			return nil, fmt.Errorf("%w: batch %s is %s", ErrAlreadyGenerated, b.BatchNumber, b.Status)
		}

		if i == 0 {
			effectiveDate = b.EffectiveDate
			description = b.Description
		} else if !b.EffectiveDate.Equal(effectiveDate) {
			return nil, fmt.Errorf("batch %s effective date %s differs from %s; one file carries one effective date",
				b.BatchNumber, b.EffectiveDate.Format(time.DateOnly), effectiveDate.Format(time.DateOnly))
		}

		batchEntries, err := s.batches.Entries(ctx, id)
		if err != nil {
			return nil, err
		}

		for _, e := range batchEntries {
			rendered, err := s.toRenderEntry(e)
			if err != nil {
				return nil, err
			}

			entries = append(entries, rendered)
		}
	}

	now := s.now().UTC()

	modifier, err := s.repo.AllocateModifier(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("allocating file ID modifier: %w", err)
	}

	rendered, err := nacha.Encode(nacha.FileParams{
		Originator:    s.orig,
		EffectiveDate: effectiveDate,
		Description:   description,
		CreatedAt:     now,
		Modifier:      modifier,
		Entries:       entries,
		OffsetTraces:  s.traces,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding file: %w", err)
	}

	f := &File{
		Filename: fmt.Sprintf("ACH_%s_%s_%s_%c.txt",
			s.orig.CompanyID, now.Format("20060102"), now.Format("150405"), modifier),
		Modifier: string(modifier),
		Status:   StatusPending,
		BatchIDs: batchIDs,
	}

	if err := s.repo.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("creating file record: %w", err)
	}

	f.Text = rendered.Text
	f.SHA256 = rendered.SHA256
	f.BatchCount = rendered.BatchCount
	f.EntryAddendaCount = rendered.EntryAddendaCount
	f.TotalDebitCents = rendered.TotalDebitCents
	f.TotalCreditCents = rendered.TotalCreditCents
	f.Status = StatusGenerated

	if err := s.repo.FinalizeFile(ctx, f); err != nil {
		return nil, fmt.Errorf("finalizing file: %w", err)
	}

	metrics.FilesGenerated.Inc()
	metrics.EntriesEncoded.Add(float64(rendered.EntryAddendaCount))

	slog.Info("generated file",
		"filename", f.Filename,
		"batches", f.BatchCount,
		"entries", f.EntryAddendaCount,
		"sha256", f.SHA256,
	)

	return f, nil
}

// toRenderEntry decrypts the account number for the render only. The
// plaintext lives in the returned value and is never logged or persisted.
func (s *Service) toRenderEntry(e *entry.Entry) (nacha.Entry, error) {
	account, err := s.vault.Decrypt(e.AccountCiphertext)
	if err != nil {
		return nacha.Entry{}, fmt.Errorf("decrypting account for entry %s: %w", e.ID, err)
	}

	return nacha.Entry{
		TransactionCode: e.TransactionCode,
		RoutingNumber:   e.RoutingNumber,
		AccountNumber:   account,
		AmountCents:     e.AmountCents,
		IndividualID:    e.IndividualID,
		Name:            e.PayeeName,
		IsBusiness:      e.IsBusiness,
		TraceNumber:     e.TraceNumber,
	}, nil
}

// Verify recomputes the stored text's hash and compares it to the stamped
// one. A mismatch is fatal for the artifact: it is never re-hashed and
// accepted.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) error {
	f, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return err
	}

	if f.Status == StatusPending {
		return fmt.Errorf("file %s has no rendered text yet", f.ID)
	}

	if aba.FileHash(f.Text) != f.SHA256 {
		return fmt.Errorf("%w: file %s", ErrIntegrityMismatch, f.ID)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*File, error) {
	return s.repo.GetFile(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*File, error) {
	return s.repo.ListFiles(ctx)
}

// UpdateStatus advances a file along submitted/accepted/processing states
// as the upload collaborator reports progress.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return s.repo.UpdateFileStatus(ctx, id, status)
}
