// Package nacha renders entries into the NACHA fixed-width file format:
// 94-character records, ten-record blocks, self-balancing batches.
//
// The encoder is pure: given the same entries, the same trace-number
// sequence, and the same creation timestamp, it produces byte-identical
// output. All persistence and key handling stays with the caller; account
// numbers arrive here already decrypted and exist only for the render.
package nacha

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stonecrest/achgen/internal/aba"
)

var (
	// ErrNoEntries means there was nothing to encode.
	ErrNoEntries = errors.New("no entries to encode")
)

const (
	recordLen = 94
	blockSize = 10

	// serviceClassMixed marks batches carrying both debits and credits,
	// which offset injection makes the common case.
	serviceClassMixed = "200"
)

// TraceSource issues trace numbers for offset entries injected during the
// render. Production callers back it with the durable allocator; tests use
// a fixed counter so output stays deterministic.
type TraceSource interface {
	NextTrace() (string, error)
}

// TraceSourceFunc adapts a function to the TraceSource interface.
type TraceSourceFunc func() (string, error)

func (f TraceSourceFunc) NextTrace() (string, error) { return f() }

// Originator carries the company identity and settlement account a file is
// rendered for. It replaces any ambient configuration lookup: callers build
// it once from their config and pass it in.
type Originator struct {
	CompanyID          string // company identification, <= 10 chars
	CompanyName        string // <= 16 chars
	OriginRouting      string // 9 digits, immediate origin
	OriginName         string // <= 23 chars
	DestinationRouting string // 9 digits, immediate destination
	DestinationName    string // <= 23 chars
	SettlementRouting  string // 9 digits, offsets post against this
	SettlementAccount  string // plaintext settlement account number
}

// Entry is one renderable instruction. Entries must be supplied in the
// order they were added to their batch; that order is preserved within each
// sub-batch and determines the batch boundary entry.
type Entry struct {
	TransactionCode string
	RoutingNumber   string // 9 digits
	AccountNumber   string // decrypted, 1-17 chars
	AmountCents     int64
	IndividualID    string
	Name            string
	IsBusiness      bool
	TraceNumber     string // 15 digits
}

// FileParams is everything one render needs.
type FileParams struct {
	Originator    Originator
	EffectiveDate time.Time
	Description   string // company entry description, <= 10 chars
	CreatedAt     time.Time
	Modifier      byte // file ID modifier, A-Z then 0-9
	Entries       []Entry
	OffsetTraces  TraceSource
}

// File is the rendered artifact.
type File struct {
	Text              string
	SHA256            string
	BatchCount        int
	EntryAddendaCount int
	TotalDebitCents   int64
	TotalCreditCents  int64
}

func isDebitCode(code string) bool {
	switch code {
	case "27", "37":
		return true
	default:
		return false
	}
}

// Encode renders the entries into a complete NACHA file.
//
// Entries are partitioned by business flag: personal entries form a PPD
// sub-batch, business entries a CCD sub-batch, each emitted as its own
// batch block. A sub-batch whose signed total (credits positive, debits
// negative) is nonzero receives exactly one offset entry against the
// settlement account inside the same sub-batch, so every batch block is
// self-balancing. Any malformed input aborts the whole encode; no partial
// text is ever returned.
func Encode(params FileParams) (*File, error) {
	if len(params.Entries) == 0 {
		return nil, ErrNoEntries
	}

	if err := validateParams(params); err != nil {
		return nil, err
	}

	var personal, business []Entry

	for _, e := range params.Entries {
		if e.IsBusiness {
			business = append(business, e)
		} else {
			personal = append(personal, e)
		}
	}

	groups := []struct {
		sec     string
		entries []Entry
	}{
		{"PPD", personal},
		{"CCD", business},
	}

	var lines []string

	header, err := fileHeader(params)
	if err != nil {
		return nil, err
	}

	lines = append(lines, header)

	file := &File{}

	var fileHashRoutings []string

	batchNumber := 0

	for _, g := range groups {
		if len(g.entries) == 0 {
			continue
		}

		batchNumber++

		block, err := encodeBatch(params, g.sec, batchNumber, g.entries)
		if err != nil {
			return nil, err
		}

		lines = append(lines, block.lines...)

		file.BatchCount++
		file.EntryAddendaCount += block.entryCount
		file.TotalDebitCents += block.debitCents
		file.TotalCreditCents += block.creditCents
		fileHashRoutings = append(fileHashRoutings, block.hashRoutings...)
	}

	control, err := fileControl(file, len(lines)+1, fileHashRoutings)
	if err != nil {
		return nil, err
	}

	lines = append(lines, control)

	for len(lines)%blockSize != 0 {
		lines = append(lines, strings.Repeat("9", recordLen))
	}

	for i, line := range lines {
		if len(line) != recordLen {
			return nil, fmt.Errorf("record %d is %d chars, want %d", i+1, len(line), recordLen)
		}
	}

	file.Text = strings.Join(lines, "\n") + "\n"
	file.SHA256 = aba.FileHash(file.Text)

	return file, nil
}

type batchBlock struct {
	lines        []string
	entryCount   int
	debitCents   int64
	creditCents  int64
	hashRoutings []string
}

func encodeBatch(params FileParams, sec string, batchNumber int, entries []Entry) (*batchBlock, error) {
	block := &batchBlock{}

	header, err := batchHeader(params, sec, batchNumber)
	if err != nil {
		return nil, err
	}

	block.lines = append(block.lines, header)

	// Credits accumulate positive, debits negative. The sign of the net
	// picks the offset direction below.
	var net int64

	renderAll := append([]Entry(nil), entries...)

	for _, e := range entries {
		if isDebitCode(e.TransactionCode) {
			net -= e.AmountCents
		} else {
			net += e.AmountCents
		}
	}

	if net != 0 {
		offset, err := offsetEntry(params.Originator, net, params.OffsetTraces)
		if err != nil {
			return nil, err
		}

		renderAll = append(renderAll, offset)
	}

	for _, e := range renderAll {
		line, err := entryDetail(e)
		if err != nil {
			return nil, err
		}

		block.lines = append(block.lines, line)
		block.entryCount++
		block.hashRoutings = append(block.hashRoutings, e.RoutingNumber[:8])

		if isDebitCode(e.TransactionCode) {
			block.debitCents += e.AmountCents
		} else {
			block.creditCents += e.AmountCents
		}
	}

	control, err := batchControl(params, batchNumber, block)
	if err != nil {
		return nil, err
	}

	block.lines = append(block.lines, control)

	return block, nil
}

// offsetEntry builds the single balancing entry for a sub-batch. A debit
// surplus (net < 0) is offset by a credit to the settlement account; a
// credit surplus by a debit.
func offsetEntry(o Originator, net int64, traces TraceSource) (Entry, error) {
	if traces == nil {
		return Entry{}, errors.New("offset required but no trace source supplied")
	}

	trace, err := traces.NextTrace()
	if err != nil {
		return Entry{}, fmt.Errorf("allocating offset trace: %w", err)
	}

	code := "22" // credit offset against the settlement checking account

	amount := net
	if amount < 0 {
		amount = -amount
	} else {
		code = "27"
	}

	return Entry{
		TransactionCode: code,
		RoutingNumber:   o.SettlementRouting,
		AccountNumber:   o.SettlementAccount,
		AmountCents:     amount,
		IndividualID:    o.CompanyID,
		Name:            "OFFSET",
		TraceNumber:     trace,
	}, nil
}

func fileHeader(params FileParams) (string, error) {
	o := params.Originator

	var b strings.Builder

	b.WriteString("1")
	b.WriteString("01")
	b.WriteString(" " + o.DestinationRouting) // 10, blank + routing
	b.WriteString(" " + o.OriginRouting)      // 10, blank + routing
	b.WriteString(params.CreatedAt.Format("060102"))
	b.WriteString(params.CreatedAt.Format("1504"))
	b.WriteByte(params.Modifier)
	b.WriteString("094") // record size
	b.WriteString("10")  // blocking factor
	b.WriteString("1")   // format code
	b.WriteString(alphaField(o.DestinationName, 23))
	b.WriteString(alphaField(o.OriginName, 23))
	b.WriteString(alphaField("", 8)) // reference code

	return b.String(), nil
}

func batchHeader(params FileParams, sec string, batchNumber int) (string, error) {
	o := params.Originator

	number, err := numField(int64(batchNumber), 7)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("5")
	b.WriteString(serviceClassMixed)
	b.WriteString(alphaField(o.CompanyName, 16))
	b.WriteString(alphaField("", 20)) // company discretionary data
	b.WriteString(alphaField(o.CompanyID, 10))
	b.WriteString(sec)
	b.WriteString(alphaField(params.Description, 10))
	b.WriteString(alphaField("", 6)) // company descriptive date
	b.WriteString(params.EffectiveDate.Format("060102"))
	b.WriteString(alphaField("", 3)) // settlement date, filled by the ACH operator
	b.WriteString("1")               // originator status code
	b.WriteString(o.OriginRouting[:8])
	b.WriteString(number)

	return b.String(), nil
}

func entryDetail(e Entry) (string, error) {
	amount, err := numField(e.AmountCents, 10)
	if err != nil {
		return "", fmt.Errorf("entry %s: %w", e.TraceNumber, err)
	}

	name, err := sanitizeName(e.Name)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("6")
	b.WriteString(e.TransactionCode)
	b.WriteString(e.RoutingNumber) // 8-digit routing id + check digit
	b.WriteString(alphaField(e.AccountNumber, 17))
	b.WriteString(amount)
	b.WriteString(alphaField(e.IndividualID, 15))
	b.WriteString(alphaField(name, 22))
	b.WriteString(alphaField("", 2)) // discretionary data
	b.WriteString("0")               // addenda record indicator
	b.WriteString(e.TraceNumber)

	return b.String(), nil
}

func batchControl(params FileParams, batchNumber int, block *batchBlock) (string, error) {
	o := params.Originator

	count, err := numField(int64(block.entryCount), 6)
	if err != nil {
		return "", err
	}

	debit, err := numField(block.debitCents, 12)
	if err != nil {
		return "", err
	}

	credit, err := numField(block.creditCents, 12)
	if err != nil {
		return "", err
	}

	number, err := numField(int64(batchNumber), 7)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("8")
	b.WriteString(serviceClassMixed)
	b.WriteString(count)
	b.WriteString(aba.EntryHash(block.hashRoutings))
	b.WriteString(debit)
	b.WriteString(credit)
	b.WriteString(alphaField(o.CompanyID, 10))
	b.WriteString(alphaField("", 19)) // message authentication code
	b.WriteString(alphaField("", 6))  // reserved
	b.WriteString(o.OriginRouting[:8])
	b.WriteString(number)

	return b.String(), nil
}

func fileControl(file *File, recordCount int, hashRoutings []string) (string, error) {
	batches, err := numField(int64(file.BatchCount), 6)
	if err != nil {
		return "", err
	}

	blocks, err := numField(int64((recordCount+blockSize-1)/blockSize), 6)
	if err != nil {
		return "", err
	}

	entries, err := numField(int64(file.EntryAddendaCount), 8)
	if err != nil {
		return "", err
	}

	debit, err := numField(file.TotalDebitCents, 12)
	if err != nil {
		return "", err
	}

	credit, err := numField(file.TotalCreditCents, 12)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("9")
	b.WriteString(batches)
	b.WriteString(blocks)
	b.WriteString(entries)
	b.WriteString(aba.EntryHash(hashRoutings))
	b.WriteString(debit)
	b.WriteString(credit)
	b.WriteString(alphaField("", 39)) // reserved

	return b.String(), nil
}

func validateParams(params FileParams) error {
	o := params.Originator

	for _, r := range []struct {
		name  string
		value string
	}{
		{"origin routing", o.OriginRouting},
		{"destination routing", o.DestinationRouting},
		{"settlement routing", o.SettlementRouting},
	} {
		if !aba.ValidateRouting(r.value) {
			return fmt.Errorf("%s %q fails ABA checksum", r.name, r.value)
		}
	}

	if params.Modifier == 0 {
		return errors.New("file ID modifier not set")
	}

	for i, e := range params.Entries {
		if !aba.ValidateRouting(e.RoutingNumber) {
			return fmt.Errorf("entry %d: routing number %q fails ABA checksum", i, e.RoutingNumber)
		}

		if e.AmountCents <= 0 {
			return fmt.Errorf("entry %d: amount %d is not positive", i, e.AmountCents)
		}

		if len(e.TraceNumber) != 15 {
			return fmt.Errorf("entry %d: trace number %q is not 15 digits", i, e.TraceNumber)
		}

		if e.AccountNumber == "" || len(e.AccountNumber) > 17 {
			return fmt.Errorf("entry %d: account number must be 1-17 chars", i)
		}

		switch e.TransactionCode {
		case "22", "27", "32", "37":
		default:
			return fmt.Errorf("entry %d: unsupported transaction code %q", i, e.TransactionCode)
		}
	}

	return nil
}
