package returns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/entry"
	"github.com/stonecrest/achgen/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=returns
type Repository interface {
	CreateRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecords(ctx context.Context, filter ListFilter) ([]*Record, error)
	UpdateRecord(ctx context.Context, r *Record) error

	FindEntryByTrace(ctx context.Context, trace string) (*entry.Entry, error)
	// ApplyToEntry moves the entry into its post-reconciliation state and
	// stores the code and payload alongside it.
	ApplyToEntry(ctx context.Context, entryID uuid.UUID, status entry.Status, code, payload string) error
}

type ListFilter struct {
	Status *Status
}

// Severity grades a reconciliation event for the caller's alerting policy.
// Post-settlement reversals mean money already moved and is now coming
// back; those are critical. Pre-settlement rejections are warnings.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is what the notification boundary receives when a record applies.
type Event struct {
	RecordID      uuid.UUID `json:"record_id"`
	EntryID       uuid.UUID `json:"entry_id"`
	OriginalTrace string    `json:"original_trace"`
	Type          Type      `json:"type"`
	Code          string    `json:"code"`
	Description   string    `json:"description"`
	Severity      Severity  `json:"severity"`
	HardReturn    bool      `json:"hard_return"`
	Retriable     bool      `json:"retriable"`
}

// Notifier is the boundary to the notification layer. A nil notifier is
// valid; events are then dropped.
type Notifier interface {
	ReturnApplied(ctx context.Context, event Event)
}

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

type IngestParams struct {
	TraceNumber   string
	OriginalTrace string
	ReturnDate    time.Time
	Code          string
	CorrectedData string
	Dishonored    bool
	Contested     bool
}

// Ingest records an inbound return or NOC in received status. Matching and
// state transitions happen at Apply time, so a record that references an
// unknown entry still lands durably for investigation.
func (s *Service) Ingest(ctx context.Context, params IngestParams) (*Record, error) {
	kind, err := Classify(params.Code)
	if err != nil {
		return nil, err
	}

	if kind == TypeReturn {
		switch {
		case params.Contested:
			kind = TypeContested
		case params.Dishonored:
			kind = TypeDishonored
		}
	}

	r := &Record{
		TraceNumber:   params.TraceNumber,
		OriginalTrace: params.OriginalTrace,
		ReturnDate:    params.ReturnDate,
		Type:          kind,
		Code:          params.Code,
		Description:   Describe(params.Code),
		CorrectedData: params.CorrectedData,
		Status:        StatusReceived,
	}

	if err := s.repo.CreateRecord(ctx, r); err != nil {
		return nil, fmt.Errorf("creating return record: %w", err)
	}

	return r, nil
}

// Apply reconciles a record against its entry. It is idempotent: a record
// already applied, or an entry already in the state this record would move
// it to, is a no-op. An unknown trace leaves the record received and
// surfaces ErrUnknownTrace without discarding anything.
func (s *Service) Apply(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.Status != StatusReceived && r.Status != StatusProcessing {
		return r, nil
	}

	e, err := s.repo.FindEntryByTrace(ctx, r.OriginalTrace)
	if err != nil {
		if errors.Is(err, entry.ErrNotFound) {
			metrics.ReturnsUnmatched.Inc()
			slog.Warn("inbound record matches no entry",
				"record_id", r.ID,
				"original_trace", r.OriginalTrace,
				"code", r.Code,
			)

			return nil, fmt.Errorf("%w: %s", ErrUnknownTrace, r.OriginalTrace)
		}

		return nil, err
	}

	target := entry.StatusReturned
	payload := r.Description

	if r.Type == TypeNOC {
		target = entry.StatusCorrected
		payload = r.CorrectedData
	}

	wasSettled := e.Status == entry.StatusSettled

	if e.Status != target {
		if err := s.repo.ApplyToEntry(ctx, e.ID, target, r.Code, payload); err != nil {
			return nil, fmt.Errorf("applying record to entry %s: %w", e.ID, err)
		}
	}

	r.Status = StatusApplied
	r.EntryID = &e.ID

	if err := s.repo.UpdateRecord(ctx, r); err != nil {
		return nil, fmt.Errorf("marking record applied: %w", err)
	}

	metrics.ReturnsApplied.WithLabelValues(string(r.Type)).Inc()

	if s.notifier != nil {
		severity := SeverityWarning
		if wasSettled && r.Type != TypeNOC {
			severity = SeverityCritical
		}

		s.notifier.ReturnApplied(ctx, Event{
			RecordID:      r.ID,
			EntryID:       e.ID,
			OriginalTrace: r.OriginalTrace,
			Type:          r.Type,
			Code:          r.Code,
			Description:   r.Description,
			Severity:      severity,
			HardReturn:    IsHardReturn(r.Code),
			Retriable:     IsRetriable(r.Code),
		})
	}

	return r, nil
}

// Review moves an applied record into reviewed status.
func (s *Service) Review(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusApplied, StatusReviewed)
}

// Resolve closes out a record after review.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusReviewed, StatusResolved)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	r, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	if r.Status != from {
		return fmt.Errorf("record %s is %s, not %s", id, r.Status, from)
	}

	r.Status = to

	return s.repo.UpdateRecord(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetRecord(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	return s.repo.ListRecords(ctx, filter)
}
