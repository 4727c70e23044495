package achfile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stonecrest/achgen/internal/aba"
	"github.com/stonecrest/achgen/internal/batch"
	"github.com/stonecrest/achgen/internal/entry"
	"github.com/stonecrest/achgen/internal/nacha"
	"github.com/stonecrest/achgen/internal/vault"
)

const testVaultKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

// fakeBatchRepo backs the batch service for end-to-end generation tests.
type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*batch.Batch
	entries map[uuid.UUID]*entry.Entry
	order   map[uuid.UUID][]uuid.UUID
	lastSeq map[string]int
	nextNum int
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{
		batches: make(map[uuid.UUID]*batch.Batch),
		entries: make(map[uuid.UUID]*entry.Entry),
		order:   make(map[uuid.UUID][]uuid.UUID),
		lastSeq: make(map[string]int),
	}
}

func (f *fakeBatchRepo) CreateBatch(_ context.Context, b *batch.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextNum++
	b.ID = uuid.New()
	b.BatchNumber = fmt.Sprintf("%07d", f.nextNum)

	clone := *b
	f.batches[b.ID] = &clone

	return nil
}

func (f *fakeBatchRepo) GetBatch(_ context.Context, id uuid.UUID) (*batch.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return nil, batch.ErrNotFound
	}

	clone := *b

	return &clone, nil
}

func (f *fakeBatchRepo) ListBatches(_ context.Context, _ batch.ListFilter) ([]*batch.Batch, error) {
	return nil, nil
}

func (f *fakeBatchRepo) UpdateBatchStatus(_ context.Context, id uuid.UUID, status batch.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return batch.ErrNotFound
	}

	b.Status = status

	return nil
}

func (f *fakeBatchRepo) UpdateTotals(_ context.Context, id uuid.UUID, totals batch.Totals) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return batch.ErrNotFound
	}

	b.EntryCount = totals.EntryCount
	b.TotalDebitCents = totals.TotalDebitCents
	b.TotalCreditCents = totals.TotalCreditCents
	b.EntryHash = totals.EntryHash

	return nil
}

func (f *fakeBatchRepo) CreateEntry(_ context.Context, e *entry.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.ID = uuid.New()

	clone := *e
	f.entries[e.ID] = &clone
	f.order[e.BatchID] = append(f.order[e.BatchID], e.ID)

	return nil
}

func (f *fakeBatchRepo) GetEntry(_ context.Context, id uuid.UUID) (*entry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return nil, entry.ErrNotFound
	}

	clone := *e

	return &clone, nil
}

func (f *fakeBatchRepo) ListEntries(_ context.Context, batchID uuid.UUID) ([]*entry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*entry.Entry

	for _, id := range f.order[batchID] {
		e := f.entries[id]
		if e.Status == entry.StatusCancelled {
			continue
		}

		clone := *e
		out = append(out, &clone)
	}

	return out, nil
}

func (f *fakeBatchRepo) UpdateEntryStatus(_ context.Context, id uuid.UUID, status entry.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return entry.ErrNotFound
	}

	e.Status = status

	return nil
}

func (f *fakeBatchRepo) AllocateTrace(_ context.Context, routing8 string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.lastSeq[routing8] + 1
	if next > 9999999 {
		return "", entry.ErrTraceExhausted
	}

	f.lastSeq[routing8] = next

	return fmt.Sprintf("%s%07d", routing8, next), nil
}

// fakeFileRepo mirrors the SQL store: a per-day modifier counter, and a
// finalize step that flips batches and entries in the same operation.
type fakeFileRepo struct {
	mu        sync.Mutex
	modifiers map[string]int
	files     map[uuid.UUID]*File
	batchRepo *fakeBatchRepo
}

func newFakeFileRepo(batchRepo *fakeBatchRepo) *fakeFileRepo {
	return &fakeFileRepo{
		modifiers: make(map[string]int),
		files:     make(map[uuid.UUID]*File),
		batchRepo: batchRepo,
	}
}

func (f *fakeFileRepo) AllocateModifier(_ context.Context, day time.Time) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := day.Format(time.DateOnly)

	idx := f.modifiers[key]
	if idx >= len(ModifierSequence) {
		return 0, ErrModifierExhausted
	}

	f.modifiers[key] = idx + 1

	return ModifierSequence[idx], nil
}

func (f *fakeFileRepo) CreateFile(_ context.Context, file *File) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file.ID = uuid.New()

	clone := *file
	f.files[file.ID] = &clone

	return nil
}

func (f *fakeFileRepo) FinalizeFile(ctx context.Context, file *File) error {
	f.mu.Lock()
	clone := *file
	f.files[file.ID] = &clone
	f.mu.Unlock()

	for _, batchID := range file.BatchIDs {
		if err := f.batchRepo.UpdateBatchStatus(ctx, batchID, batch.StatusGenerated); err != nil {
			return err
		}

		entries, err := f.batchRepo.ListEntries(ctx, batchID)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if e.Status != entry.StatusPending {
				continue
			}

			if err := f.batchRepo.UpdateEntryStatus(ctx, e.ID, entry.StatusSubmitted); err != nil {
				return err
			}
		}
	}

	return nil
}

func (f *fakeFileRepo) GetFile(_ context.Context, id uuid.UUID) (*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *file

	return &clone, nil
}

func (f *fakeFileRepo) ListFiles(_ context.Context) ([]*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*File, 0, len(f.files))
	for _, file := range f.files {
		clone := *file
		out = append(out, &clone)
	}

	return out, nil
}

func (f *fakeFileRepo) UpdateFileStatus(_ context.Context, id uuid.UUID, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.files[id]
	if !ok {
		return ErrNotFound
	}

	file.Status = status

	return nil
}

type harness struct {
	svc       *Service
	batches   *batch.Service
	batchRepo *fakeBatchRepo
	fileRepo  *fakeFileRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	v, err := vault.NewAESVault(testVaultKey)
	require.NoError(t, err)

	batchRepo := newFakeBatchRepo()
	fileRepo := newFakeFileRepo(batchRepo)
	batches := batch.NewService(batchRepo, v, "23138010")

	orig := nacha.Originator{
		CompanyID:          "1234567890",
		CompanyName:        "STONECREST",
		OriginRouting:      "231380104",
		OriginName:         "STONECREST BANK",
		DestinationRouting: "121042882",
		DestinationName:    "WELLS FARGO",
		SettlementRouting:  "091000019",
		SettlementAccount:  "9900001111",
	}

	traces := nacha.TraceSourceFunc(func() (string, error) {
		return batchRepo.AllocateTrace(context.Background(), "23138010")
	})

	svc := NewService(fileRepo, batches, v, orig, traces).WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	})

	return &harness{svc: svc, batches: batches, batchRepo: batchRepo, fileRepo: fileRepo}
}

func (h *harness) openBatchWithEntries(t *testing.T) *batch.Batch {
	t.Helper()

	ctx := context.Background()

	b, err := h.batches.Open(ctx, batch.OpenParams{
		EffectiveDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		SECCode:       batch.SECPPD,
		Description:   "PAYROLL",
	})
	require.NoError(t, err)

	_, err = h.batches.AddEntry(ctx, b.ID, batch.AddEntryParams{
		Direction:     entry.Credit,
		AccountType:   entry.Checking,
		RoutingNumber: "076401251",
		AccountNumber: "12345678",
		AmountCents:   5000,
		PayeeName:     "JANE DOE",
		IndividualID:  "EMP001",
	})
	require.NoError(t, err)

	_, err = h.batches.AddEntry(ctx, b.ID, batch.AddEntryParams{
		Direction:     entry.Credit,
		AccountType:   entry.Checking,
		RoutingNumber: "091000019",
		AccountNumber: "555123",
		AmountCents:   120000,
		PayeeName:     "ACME SUPPLY CO",
		IndividualID:  "INV-2041",
		IsBusiness:    true,
	})
	require.NoError(t, err)

	return b
}

func TestGenerateEndToEnd(t *testing.T) {
	h := newHarness(t)
	b := h.openBatchWithEntries(t)

	ctx := context.Background()

	f, err := h.svc.Generate(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)

	assert.Equal(t, "ACH_1234567890_20260301_143000_A.txt", f.Filename)
	assert.Equal(t, "A", f.Modifier)
	assert.Equal(t, StatusGenerated, f.Status)

	// One personal and one business instruction split into PPD and CCD
	// sub-batches, each balanced by its own offset.
	assert.Equal(t, 2, f.BatchCount)
	assert.Equal(t, 4, f.EntryAddendaCount)
	assert.Equal(t, int64(125000), f.TotalCreditCents)
	assert.Equal(t, int64(125000), f.TotalDebitCents)
	assert.Equal(t, aba.FileHash(f.Text), f.SHA256)

	got, err := h.batches.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusGenerated, got.Status)

	entries, err := h.batches.Entries(ctx, b.ID)
	require.NoError(t, err)

	for _, e := range entries {
		assert.Equal(t, entry.StatusSubmitted, e.Status)
	}
}

func TestGenerateRejectsConsumedBatch(t *testing.T) {
	h := newHarness(t)
	b := h.openBatchWithEntries(t)

	ctx := context.Background()

	_, err := h.svc.Generate(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)

	_, err = h.svc.Generate(ctx, []uuid.UUID{b.ID})
	require.ErrorIs(t, err, ErrAlreadyGenerated)
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Generate(context.Background(), nil)
	require.ErrorIs(t, err, batch.ErrEmptyBatch)
}

func TestGenerateRejectsEmptyBatch(t *testing.T) {
	h := newHarness(t)

	b, err := h.batches.Open(context.Background(), batch.OpenParams{
		EffectiveDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		SECCode:       batch.SECPPD,
		Description:   "PAYROLL",
	})
	require.NoError(t, err)

	_, err = h.svc.Generate(context.Background(), []uuid.UUID{b.ID})
	require.ErrorIs(t, err, batch.ErrEmptyBatch)
}

func TestGenerateRejectsMixedEffectiveDates(t *testing.T) {
	h := newHarness(t)
	first := h.openBatchWithEntries(t)

	ctx := context.Background()

	second, err := h.batches.Open(ctx, batch.OpenParams{
		EffectiveDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		SECCode:       batch.SECPPD,
		Description:   "VENDORS",
	})
	require.NoError(t, err)

	_, err = h.batches.AddEntry(ctx, second.ID, batch.AddEntryParams{
		Direction:     entry.Credit,
		AccountType:   entry.Checking,
		RoutingNumber: "076401251",
		AccountNumber: "777",
		AmountCents:   100,
		PayeeName:     "JOHN ROE",
	})
	require.NoError(t, err)

	_, err = h.svc.Generate(ctx, []uuid.UUID{first.ID, second.ID})
	require.ErrorContains(t, err, "effective date")
}

func TestModifierSequenceAndExhaustion(t *testing.T) {
	h := newHarness(t)
	b := h.openBatchWithEntries(t)

	ctx := context.Background()

	// 36 files already went out today.
	h.fileRepo.modifiers["2026-03-01"] = len(ModifierSequence)

	_, err := h.svc.Generate(ctx, []uuid.UUID{b.ID})
	require.ErrorIs(t, err, ErrModifierExhausted)

	// Tomorrow the sequence restarts at 'A'. The failed attempt left the
	// batch ready, so it is still generatable.
	h.svc.WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	})

	f, err := h.svc.Generate(ctx, []uuid.UUID{b.ID})
	require.NoError(t, err)
	assert.Equal(t, "A", f.Modifier)
}

func TestVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil, nil, nacha.Originator{}, nil)

	text := "101 121042882 231380104\n"
	id := uuid.New()

	repo.EXPECT().GetFile(gomock.Any(), id).Return(&File{
		ID:     id,
		Status: StatusGenerated,
		Text:   text,
		SHA256: aba.FileHash(text),
	}, nil)

	require.NoError(t, svc.Verify(context.Background(), id))
}

func TestVerifyDetectsTamper(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil, nil, nacha.Originator{}, nil)

	text := "101 121042882 231380104\n"
	id := uuid.New()

	repo.EXPECT().GetFile(gomock.Any(), id).Return(&File{
		ID:     id,
		Status: StatusGenerated,
		Text:   text + " ",
		SHA256: aba.FileHash(text),
	}, nil)

	err := svc.Verify(context.Background(), id)
	require.ErrorIs(t, err, ErrIntegrityMismatch)
}

func TestVerifyRejectsPendingFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil, nil, nacha.Originator{}, nil)

	id := uuid.New()
	repo.EXPECT().GetFile(gomock.Any(), id).Return(&File{ID: id, Status: StatusPending}, nil)

	err := svc.Verify(context.Background(), id)
	require.ErrorContains(t, err, "no rendered text")
}
