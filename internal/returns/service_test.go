package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stonecrest/achgen/internal/entry"
)

func TestClassify(t *testing.T) {
	kind, err := Classify("R01")
	require.NoError(t, err)
	assert.Equal(t, TypeReturn, kind)

	kind, err = Classify("c05")
	require.NoError(t, err)
	assert.Equal(t, TypeNOC, kind)

	_, err = Classify("X99")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestHardAndRetriableCodes(t *testing.T) {
	assert.True(t, IsHardReturn("R02"))
	assert.True(t, IsHardReturn("r15"))
	assert.False(t, IsHardReturn("R01"))

	assert.True(t, IsRetriable("R01"))
	assert.True(t, IsRetriable("R09"))
	assert.False(t, IsRetriable("R02"))
	assert.False(t, IsRetriable("C01"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Insufficient funds", Describe("R01"))
	assert.Equal(t, "Incorrect routing number", Describe("C02"))
	assert.Equal(t, "X99", Describe("X99"))
}

func receivedRecord(code string, kind Type) *Record {
	return &Record{
		ID:            uuid.New(),
		TraceNumber:   "099100011234567",
		OriginalTrace: "231380100000001",
		ReturnDate:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Type:          kind,
		Code:          code,
		Description:   Describe(code),
		Status:        StatusReceived,
	}
}

func TestIngest(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	repo.EXPECT().CreateRecord(gomock.Any(), gomock.Any()).Return(nil)

	rec, err := svc.Ingest(context.Background(), IngestParams{
		TraceNumber:   "099100011234567",
		OriginalTrace: "231380100000001",
		ReturnDate:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Code:          "R01",
	})
	require.NoError(t, err)

	assert.Equal(t, TypeReturn, rec.Type)
	assert.Equal(t, "Insufficient funds", rec.Description)
	assert.Equal(t, StatusReceived, rec.Status)
}

func TestIngestClassifiesDishonoredAndContested(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	repo.EXPECT().CreateRecord(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	ctx := context.Background()

	rec, err := svc.Ingest(ctx, IngestParams{Code: "R01", Dishonored: true})
	require.NoError(t, err)
	assert.Equal(t, TypeDishonored, rec.Type)

	rec, err = svc.Ingest(ctx, IngestParams{Code: "R01", Contested: true})
	require.NoError(t, err)
	assert.Equal(t, TypeContested, rec.Type)

	// The flags only refine returns; a NOC stays a NOC.
	rec, err = svc.Ingest(ctx, IngestParams{Code: "C01", Dishonored: true})
	require.NoError(t, err)
	assert.Equal(t, TypeNOC, rec.Type)
}

func TestIngestRejectsUnknownCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewService(NewMockRepository(ctrl), nil)

	_, err := svc.Ingest(context.Background(), IngestParams{Code: "X99"})
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestApplyReturn(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	notifier := NewMockNotifier(ctrl)
	svc := NewService(repo, notifier)

	rec := receivedRecord("R01", TypeReturn)
	e := &entry.Entry{ID: uuid.New(), TraceNumber: rec.OriginalTrace, Status: entry.StatusSubmitted}

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().FindEntryByTrace(gomock.Any(), rec.OriginalTrace).Return(e, nil)
	repo.EXPECT().ApplyToEntry(gomock.Any(), e.ID, entry.StatusReturned, "R01", "Insufficient funds").Return(nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), rec).Return(nil)

	var event Event

	notifier.EXPECT().ReturnApplied(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev Event) {
		event = ev
	})

	got, err := svc.Apply(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusApplied, got.Status)
	require.NotNil(t, got.EntryID)
	assert.Equal(t, e.ID, *got.EntryID)

	assert.Equal(t, SeverityWarning, event.Severity)
	assert.True(t, event.Retriable)
	assert.False(t, event.HardReturn)
}

func TestApplyNOCStoresCorrectedDataVerbatim(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	rec := receivedRecord("C01", TypeNOC)
	rec.CorrectedData = "121042882        99887766"

	e := &entry.Entry{ID: uuid.New(), TraceNumber: rec.OriginalTrace, Status: entry.StatusSettled}

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().FindEntryByTrace(gomock.Any(), rec.OriginalTrace).Return(e, nil)
	repo.EXPECT().ApplyToEntry(gomock.Any(), e.ID, entry.StatusCorrected, "C01", rec.CorrectedData).Return(nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), rec).Return(nil)

	_, err := svc.Apply(context.Background(), rec.ID)
	require.NoError(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	rec := receivedRecord("R01", TypeReturn)
	rec.Status = StatusApplied

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)

	got, err := svc.Apply(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, got.Status)
}

func TestApplyUnknownTraceLeavesRecordReceived(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	rec := receivedRecord("R01", TypeReturn)

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().FindEntryByTrace(gomock.Any(), rec.OriginalTrace).Return(nil, entry.ErrNotFound)

	_, err := svc.Apply(context.Background(), rec.ID)
	require.ErrorIs(t, err, ErrUnknownTrace)
}

func TestApplyAfterSettlementIsCritical(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	notifier := NewMockNotifier(ctrl)
	svc := NewService(repo, notifier)

	rec := receivedRecord("R10", TypeReturn)
	e := &entry.Entry{ID: uuid.New(), TraceNumber: rec.OriginalTrace, Status: entry.StatusSettled}

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().FindEntryByTrace(gomock.Any(), rec.OriginalTrace).Return(e, nil)
	repo.EXPECT().ApplyToEntry(gomock.Any(), e.ID, entry.StatusReturned, "R10", Describe("R10")).Return(nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), rec).Return(nil)

	var event Event

	notifier.EXPECT().ReturnApplied(gomock.Any(), gomock.Any()).Do(func(_ context.Context, ev Event) {
		event = ev
	})

	_, err := svc.Apply(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, SeverityCritical, event.Severity)
	assert.True(t, event.HardReturn)
}

func TestApplySkipsEntryAlreadyInTargetState(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	rec := receivedRecord("R01", TypeReturn)
	e := &entry.Entry{ID: uuid.New(), TraceNumber: rec.OriginalTrace, Status: entry.StatusReturned}

	repo.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	repo.EXPECT().FindEntryByTrace(gomock.Any(), rec.OriginalTrace).Return(e, nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), rec).Return(nil)

	got, err := svc.Apply(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, got.Status)
}

func TestReviewAndResolveTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	ctx := context.Background()

	applied := receivedRecord("R01", TypeReturn)
	applied.Status = StatusApplied

	repo.EXPECT().GetRecord(gomock.Any(), applied.ID).Return(applied, nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), applied).Return(nil)
	require.NoError(t, svc.Review(ctx, applied.ID))
	assert.Equal(t, StatusReviewed, applied.Status)

	repo.EXPECT().GetRecord(gomock.Any(), applied.ID).Return(applied, nil)
	repo.EXPECT().UpdateRecord(gomock.Any(), applied).Return(nil)
	require.NoError(t, svc.Resolve(ctx, applied.ID))
	assert.Equal(t, StatusResolved, applied.Status)

	// Out-of-order transitions are rejected.
	received := receivedRecord("R01", TypeReturn)
	repo.EXPECT().GetRecord(gomock.Any(), received.ID).Return(received, nil)
	require.ErrorContains(t, svc.Review(ctx, received.ID), "not applied")
}
