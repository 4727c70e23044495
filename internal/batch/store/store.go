package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/batch"
	"github.com/stonecrest/achgen/internal/entry"
)

// batchNumberLockKey serializes batch-number allocation across requests.
const batchNumberLockKey = int64(0x61636862) // "achb"

// maxTraceSeq is the largest 7-digit sequence composable into a trace number.
const maxTraceSeq = 9_999_999

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectBatchColumns = `
	b.id, b.batch_number, b.sec_code, b.description, b.effective_date,
	b.entry_count, b.total_debit_cents, b.total_credit_cents, b.entry_hash,
	b.status, b.created_at, b.updated_at
`

func scanBatch(s scanner) (*batch.Batch, error) {
	var b batch.Batch

	var secCode, status string

	if err := s.Scan(
		&b.ID, &b.BatchNumber, &secCode, &b.Description, &b.EffectiveDate,
		&b.EntryCount, &b.TotalDebitCents, &b.TotalCreditCents, &b.EntryHash,
		&status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.SECCode = batch.SECCode(secCode)
	b.Status = batch.Status(status)

	return &b, nil
}

// CreateBatch inserts the batch, assigning the next 7-digit batch number
// under an advisory lock. The number wraps at 10^7; uniqueness over the
// system lifetime comes from the batch id, not the number.
func (s *Store) CreateBatch(ctx context.Context, b *batch.Batch) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch tx: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", batchNumberLockKey); err != nil {
		return fmt.Errorf("acquiring batch number lock: %w", err)
	}

	var next int64
	if err := dbTx.QueryRowContext(ctx, `
		UPDATE batch_counter SET last_number = (last_number + 1) % 10000000
		RETURNING last_number
	`).Scan(&next); err != nil {
		return fmt.Errorf("advancing batch counter: %w", err)
	}

	b.BatchNumber = fmt.Sprintf("%07d", next)

	query := `
		INSERT INTO batches (batch_number, sec_code, description, effective_date, entry_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = dbTx.QueryRowContext(ctx, query,
		b.BatchNumber,
		b.SECCode,
		b.Description,
		b.EffectiveDate,
		b.EntryHash,
		b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating batch: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	query := `SELECT ` + selectBatchColumns + ` FROM batches b WHERE b.id = $1`

	b, err := scanBatch(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, batch.ErrNotFound
		}

		return nil, fmt.Errorf("getting batch: %w", err)
	}

	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, filter batch.ListFilter) ([]*batch.Batch, error) {
	query := `SELECT ` + selectBatchColumns + ` FROM batches b WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND b.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.EffectiveDate != nil {
		query += fmt.Sprintf(" AND b.effective_date = $%d", argIdx)

		args = append(args, *filter.EffectiveDate)
		argIdx++
	}

	query += " ORDER BY b.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []*batch.Batch

	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch rows: %w", err)
	}

	return batches, nil
}

func (s *Store) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status batch.Status) error {
	query := `
		UPDATE batches
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}

	return nil
}

func (s *Store) UpdateTotals(ctx context.Context, id uuid.UUID, totals batch.Totals) error {
	query := `
		UPDATE batches
		SET entry_count = $1, total_debit_cents = $2, total_credit_cents = $3, entry_hash = $4, updated_at = NOW()
		WHERE id = $5
	`

	_, err := s.db.ExecContext(ctx, query,
		totals.EntryCount,
		totals.TotalDebitCents,
		totals.TotalCreditCents,
		totals.EntryHash,
		id,
	)
	if err != nil {
		return fmt.Errorf("updating batch totals: %w", err)
	}

	return nil
}

const selectEntryColumns = `
	e.id, e.batch_id, e.transaction_code, e.routing_number, e.account_ciphertext,
	e.amount_cents, e.payee_name, e.individual_id, e.trace_number, e.is_business,
	e.status, e.return_code, e.return_payload, e.external_ref, e.created_at, e.updated_at
`

func scanEntry(s scanner) (*entry.Entry, error) {
	var e entry.Entry

	var status string

	var returnCode, returnPayload, externalRef sql.NullString

	if err := s.Scan(
		&e.ID, &e.BatchID, &e.TransactionCode, &e.RoutingNumber, &e.AccountCiphertext,
		&e.AmountCents, &e.PayeeName, &e.IndividualID, &e.TraceNumber, &e.IsBusiness,
		&status, &returnCode, &returnPayload, &externalRef, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Status = entry.Status(status)
	e.ReturnCode = returnCode.String
	e.ReturnPayload = returnPayload.String
	e.ExternalRef = externalRef.String

	return &e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	query := `
		INSERT INTO entries (batch_id, transaction_code, routing_number, account_ciphertext,
			amount_cents, payee_name, individual_id, trace_number, is_business, status,
			external_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		e.BatchID,
		e.TransactionCode,
		e.RoutingNumber,
		e.AccountCiphertext,
		e.AmountCents,
		e.PayeeName,
		e.IndividualID,
		e.TraceNumber,
		e.IsBusiness,
		e.Status,
		e.ExternalRef,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}

	return nil
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	query := `SELECT ` + selectEntryColumns + ` FROM entries e WHERE e.id = $1`

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entry.ErrNotFound
		}

		return nil, fmt.Errorf("getting entry: %w", err)
	}

	return e, nil
}

// ListEntries returns the batch's live entries in insertion order (seq is a
// monotone bigserial, so it reflects insert order even within one
// timestamp tick).
func (s *Store) ListEntries(ctx context.Context, batchID uuid.UUID) ([]*entry.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM entries e
		WHERE e.batch_id = $1 AND e.status <> 'cancelled'
		ORDER BY e.seq ASC`

	rows, err := s.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []*entry.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry rows: %w", err)
	}

	return entries, nil
}

func (s *Store) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status entry.Status) error {
	query := `
		UPDATE entries
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating entry status: %w", err)
	}

	return nil
}

// AllocateTrace reserves the next trace number for an originator routing
// number. The counter row is taken FOR UPDATE so concurrent allocations
// serialize on it; the sequence is durably advanced before the composed
// number is returned.
func (s *Store) AllocateTrace(ctx context.Context, routing8 string) (string, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning trace tx: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO trace_counters (routing, last_seq) VALUES ($1, 0)
		ON CONFLICT (routing) DO NOTHING
	`, routing8); err != nil {
		return "", fmt.Errorf("seeding trace counter: %w", err)
	}

	var last int64
	if err := dbTx.QueryRowContext(ctx,
		"SELECT last_seq FROM trace_counters WHERE routing = $1 FOR UPDATE",
		routing8,
	).Scan(&last); err != nil {
		return "", fmt.Errorf("locking trace counter: %w", err)
	}

	if last >= maxTraceSeq {
		return "", entry.ErrTraceExhausted
	}

	next := last + 1

	if _, err := dbTx.ExecContext(ctx,
		"UPDATE trace_counters SET last_seq = $1 WHERE routing = $2",
		next, routing8,
	); err != nil {
		return "", fmt.Errorf("advancing trace counter: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return "", fmt.Errorf("committing trace allocation: %w", err)
	}

	return fmt.Sprintf("%s%07d", routing8, next), nil
}
