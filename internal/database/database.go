package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func New(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	return nil
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		batch_number CHAR(7) NOT NULL,
		sec_code TEXT NOT NULL,
		description TEXT NOT NULL,
		effective_date DATE NOT NULL,
		entry_count INT NOT NULL DEFAULT 0,
		total_debit_cents BIGINT NOT NULL DEFAULT 0,
		total_credit_cents BIGINT NOT NULL DEFAULT 0,
		entry_hash CHAR(10) NOT NULL DEFAULT '0000000000',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq BIGSERIAL,
		batch_id UUID NOT NULL REFERENCES batches(id),
		transaction_code CHAR(2) NOT NULL,
		routing_number CHAR(9) NOT NULL,
		account_ciphertext TEXT NOT NULL,
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		payee_name TEXT NOT NULL,
		individual_id TEXT NOT NULL,
		trace_number CHAR(15) NOT NULL UNIQUE,
		is_business BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		return_code TEXT,
		return_payload TEXT,
		external_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS entries_batch_id_seq_idx ON entries (batch_id, seq)`,

	`CREATE TABLE IF NOT EXISTS trace_counters (
		routing CHAR(8) PRIMARY KEY,
		last_seq BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS batch_counter (
		id BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
		last_number BIGINT NOT NULL DEFAULT 0
	)`,

	`INSERT INTO batch_counter (id, last_number) VALUES (TRUE, 0) ON CONFLICT DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS files (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		filename TEXT NOT NULL UNIQUE,
		modifier CHAR(1) NOT NULL,
		batch_count INT NOT NULL DEFAULT 0,
		entry_addenda_count INT NOT NULL DEFAULT 0,
		total_debit_cents BIGINT NOT NULL DEFAULT 0,
		total_credit_cents BIGINT NOT NULL DEFAULT 0,
		text TEXT,
		sha256 CHAR(64),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS file_batches (
		file_id UUID NOT NULL REFERENCES files(id),
		batch_id UUID NOT NULL REFERENCES batches(id),
		PRIMARY KEY (file_id, batch_id)
	)`,

	`CREATE TABLE IF NOT EXISTS file_modifiers (
		day DATE PRIMARY KEY,
		next_index INT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS return_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		trace_number CHAR(15) NOT NULL,
		original_trace CHAR(15) NOT NULL,
		return_date DATE NOT NULL,
		type TEXT NOT NULL,
		code TEXT NOT NULL,
		description TEXT NOT NULL,
		corrected_data TEXT,
		status TEXT NOT NULL,
		entry_id UUID REFERENCES entries(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS return_records_original_trace_idx ON return_records (original_trace)`,
}
