package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/achgen/internal/achfile"
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

// AllocateModifier reserves the next file-ID modifier for a calendar day.
// The per-day counter row is taken FOR UPDATE, so concurrent generations
// serialize; a new day starts back at 'A'.
func (s *Store) AllocateModifier(ctx context.Context, day time.Time) (byte, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning modifier tx: %w", err)
	}
	defer dbTx.Rollback()

	date := day.Format("2006-01-02")

	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO file_modifiers (day, next_index) VALUES ($1, 0)
		ON CONFLICT (day) DO NOTHING
	`, date); err != nil {
		return 0, fmt.Errorf("seeding modifier counter: %w", err)
	}

	var idx int
	if err := dbTx.QueryRowContext(ctx,
		"SELECT next_index FROM file_modifiers WHERE day = $1 FOR UPDATE",
		date,
	).Scan(&idx); err != nil {
		return 0, fmt.Errorf("locking modifier counter: %w", err)
	}

	if idx >= len(achfile.ModifierSequence) {
		return 0, fmt.Errorf("%w: day %s", achfile.ErrModifierExhausted, date)
	}

	if _, err := dbTx.ExecContext(ctx,
		"UPDATE file_modifiers SET next_index = $1 WHERE day = $2",
		idx+1, date,
	); err != nil {
		return 0, fmt.Errorf("advancing modifier counter: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("committing modifier allocation: %w", err)
	}

	return achfile.ModifierSequence[idx], nil
}

func (s *Store) CreateFile(ctx context.Context, f *achfile.File) error {
	query := `
		INSERT INTO files (filename, modifier, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, f.Filename, f.Modifier, f.Status).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	return nil
}

// FinalizeFile stamps the rendered output and flips file, batches, and
// entries forward in one transaction, so a generated file never coexists
// with unsubmitted state.
func (s *Store) FinalizeFile(ctx context.Context, f *achfile.File) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning finalize tx: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		UPDATE files
		SET text = $1, sha256 = $2, batch_count = $3, entry_addenda_count = $4,
			total_debit_cents = $5, total_credit_cents = $6, status = $7, updated_at = NOW()
		WHERE id = $8
	`

	if _, err := dbTx.ExecContext(ctx, query,
		f.Text, f.SHA256, f.BatchCount, f.EntryAddendaCount,
		f.TotalDebitCents, f.TotalCreditCents, f.Status, f.ID,
	); err != nil {
		return fmt.Errorf("stamping file: %w", err)
	}

	for _, batchID := range f.BatchIDs {
		if _, err := dbTx.ExecContext(ctx,
			"INSERT INTO file_batches (file_id, batch_id) VALUES ($1, $2)",
			f.ID, batchID,
		); err != nil {
			return fmt.Errorf("linking batch %s: %w", batchID, err)
		}

		if _, err := dbTx.ExecContext(ctx,
			"UPDATE batches SET status = 'generated', updated_at = NOW() WHERE id = $1",
			batchID,
		); err != nil {
			return fmt.Errorf("marking batch %s generated: %w", batchID, err)
		}

		if _, err := dbTx.ExecContext(ctx, `
			UPDATE entries SET status = 'submitted', updated_at = NOW()
			WHERE batch_id = $1 AND status = 'pending'
		`, batchID); err != nil {
			return fmt.Errorf("marking entries submitted for batch %s: %w", batchID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing finalize: %w", err)
	}

	return nil
}

const selectFileColumns = `
	f.id, f.filename, f.modifier, f.batch_count, f.entry_addenda_count,
	f.total_debit_cents, f.total_credit_cents, f.text, f.sha256, f.status,
	f.created_at, f.updated_at
`

func scanFile(s scanner) (*achfile.File, error) {
	var f achfile.File

	var status string

	var text, sha sql.NullString

	if err := s.Scan(
		&f.ID, &f.Filename, &f.Modifier, &f.BatchCount, &f.EntryAddendaCount,
		&f.TotalDebitCents, &f.TotalCreditCents, &text, &sha, &status,
		&f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	f.Text = text.String
	f.SHA256 = sha.String
	f.Status = achfile.Status(status)

	return &f, nil
}

func (s *Store) GetFile(ctx context.Context, id uuid.UUID) (*achfile.File, error) {
	query := `SELECT ` + selectFileColumns + ` FROM files f WHERE f.id = $1`

	f, err := scanFile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, achfile.ErrNotFound
		}

		return nil, fmt.Errorf("getting file: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT batch_id FROM file_batches WHERE file_id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("listing file batches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var batchID uuid.UUID
		if err := rows.Scan(&batchID); err != nil {
			return nil, fmt.Errorf("scanning file batch: %w", err)
		}

		f.BatchIDs = append(f.BatchIDs, batchID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file batch rows: %w", err)
	}

	return f, nil
}

func (s *Store) ListFiles(ctx context.Context) ([]*achfile.File, error) {
	query := `SELECT ` + selectFileColumns + ` FROM files f ORDER BY f.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []*achfile.File

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}

		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file rows: %w", err)
	}

	return files, nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, id uuid.UUID, status achfile.Status) error {
	query := `
		UPDATE files
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating file status: %w", err)
	}

	return nil
}
