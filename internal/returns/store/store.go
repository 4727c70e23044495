package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/entry"
	"github.com/stonecrest/achgen/internal/returns"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const selectRecordColumns = `
	r.id, r.trace_number, r.original_trace, r.return_date, r.type, r.code,
	r.description, r.corrected_data, r.status, r.entry_id, r.created_at, r.updated_at
`

func scanRecord(s scanner) (*returns.Record, error) {
	var r returns.Record

	var kind, status string

	var corrected sql.NullString

	if err := s.Scan(
		&r.ID, &r.TraceNumber, &r.OriginalTrace, &r.ReturnDate, &kind, &r.Code,
		&r.Description, &corrected, &status, &r.EntryID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Type = returns.Type(kind)
	r.Status = returns.Status(status)
	r.CorrectedData = corrected.String

	return &r, nil
}

func (s *Store) CreateRecord(ctx context.Context, r *returns.Record) error {
	query := `
		INSERT INTO return_records (trace_number, original_trace, return_date, type, code,
			description, corrected_data, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		r.TraceNumber,
		r.OriginalTrace,
		r.ReturnDate,
		r.Type,
		r.Code,
		r.Description,
		r.CorrectedData,
		r.Status,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating return record: %w", err)
	}

	return nil
}

func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (*returns.Record, error) {
	query := `SELECT ` + selectRecordColumns + ` FROM return_records r WHERE r.id = $1`

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, returns.ErrNotFound
		}

		return nil, fmt.Errorf("getting return record: %w", err)
	}

	return r, nil
}

func (s *Store) ListRecords(ctx context.Context, filter returns.ListFilter) ([]*returns.Record, error) {
	query := `SELECT ` + selectRecordColumns + ` FROM return_records r WHERE TRUE`

	var args []any

	if filter.Status != nil {
		query += " AND r.status = $1"

		args = append(args, *filter.Status)
	}

	query += " ORDER BY r.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing return records: %w", err)
	}
	defer rows.Close()

	var records []*returns.Record

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning return record: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating return record rows: %w", err)
	}

	return records, nil
}

func (s *Store) UpdateRecord(ctx context.Context, r *returns.Record) error {
	query := `
		UPDATE return_records
		SET status = $1, entry_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	_, err := s.db.ExecContext(ctx, query, r.Status, r.EntryID, r.ID)
	if err != nil {
		return fmt.Errorf("updating return record: %w", err)
	}

	return nil
}

func (s *Store) FindEntryByTrace(ctx context.Context, trace string) (*entry.Entry, error) {
	query := `
		SELECT e.id, e.batch_id, e.transaction_code, e.routing_number, e.account_ciphertext,
			e.amount_cents, e.payee_name, e.individual_id, e.trace_number, e.is_business,
			e.status, e.return_code, e.return_payload, e.external_ref, e.created_at, e.updated_at
		FROM entries e
		WHERE e.trace_number = $1
	`

	var e entry.Entry

	var status string

	var returnCode, returnPayload, externalRef sql.NullString

	err := s.db.QueryRowContext(ctx, query, trace).Scan(
		&e.ID, &e.BatchID, &e.TransactionCode, &e.RoutingNumber, &e.AccountCiphertext,
		&e.AmountCents, &e.PayeeName, &e.IndividualID, &e.TraceNumber, &e.IsBusiness,
		&status, &returnCode, &returnPayload, &externalRef, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entry.ErrNotFound
		}

		return nil, fmt.Errorf("finding entry by trace: %w", err)
	}

	e.Status = entry.Status(status)
	e.ReturnCode = returnCode.String
	e.ReturnPayload = returnPayload.String
	e.ExternalRef = externalRef.String

	return &e, nil
}

func (s *Store) ApplyToEntry(ctx context.Context, entryID uuid.UUID, status entry.Status, code, payload string) error {
	query := `
		UPDATE entries
		SET status = $1, return_code = $2, return_payload = $3, updated_at = NOW()
		WHERE id = $4
	`

	_, err := s.db.ExecContext(ctx, query, status, code, payload, entryID)
	if err != nil {
		return fmt.Errorf("applying record to entry: %w", err)
	}

	return nil
}
