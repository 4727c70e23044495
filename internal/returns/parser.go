package returns

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/stonecrest/achgen/internal/textenc"
)

// ParseFile reads a NACHA file of returned/corrected entries as delivered
// by the bank and extracts one IngestParams per entry/addenda pair. The
// input charset is detected first; banks are not consistent about it.
func ParseFile(r io.Reader) ([]IngestParams, error) {
	utf8r, err := textenc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	scanner := bufio.NewScanner(utf8r)

	var (
		params     []IngestParams
		returnDate time.Time
		haveEntry  bool
	)

	lineNum := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if len(line) != 94 {
			return nil, fmt.Errorf("line %d: %d chars, want 94", lineNum, len(line))
		}

		switch line[0] {
		case '1':
			// File creation date stands in for the return date; the
			// addenda record itself carries none.
			d, err := time.Parse("060102", line[23:29])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad file creation date %q", lineNum, line[23:29])
			}

			returnDate = d
		case '6':
			haveEntry = true
		case '7':
			if !haveEntry {
				return nil, fmt.Errorf("line %d: addenda record without a preceding entry", lineNum)
			}

			p, err := parseAddenda(line, returnDate)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}

			params = append(params, p)
			haveEntry = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading return file: %w", err)
	}

	return params, nil
}

// parseAddenda extracts the code, original trace, and (for NOCs) the
// corrected data from a type-98 or type-99 addenda record.
func parseAddenda(line string, returnDate time.Time) (IngestParams, error) {
	p := IngestParams{
		Code:          strings.TrimSpace(line[3:6]),
		OriginalTrace: line[6:21],
		TraceNumber:   line[79:94],
		ReturnDate:    returnDate,
	}

	switch line[1:3] {
	case "99":
	case "98":
		p.CorrectedData = strings.TrimSpace(line[35:64])
	default:
		return IngestParams{}, fmt.Errorf("unsupported addenda type %q", line[1:3])
	}

	return p, nil
}

// IngestFile parses a bank return file and ingests every record it can.
// Per-record failures (unknown codes, mostly) are logged and skipped so one
// bad record never blocks the rest of the day's reports.
func (s *Service) IngestFile(ctx context.Context, r io.Reader) ([]*Record, error) {
	params, err := ParseFile(r)
	if err != nil {
		return nil, err
	}

	var records []*Record

	for _, p := range params {
		rec, err := s.Ingest(ctx, p)
		if err != nil {
			slog.Warn("skipping inbound record",
				"original_trace", p.OriginalTrace,
				"code", p.Code,
				"error", err,
			)

			continue
		}

		records = append(records, rec)
	}

	return records, nil
}
