// Package returns reconciles inbound return and notification-of-change
// records reported by the receiving bank network against the entries that
// originated them.
package returns

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("return record not found")

	// ErrUnknownTrace means an inbound record references no known entry.
	// The record stays received and unapplied for manual investigation.
	ErrUnknownTrace = errors.New("no entry matches the original trace number")

	ErrInvalidCode = errors.New("code is not a known return or change code")
)

// Type classifies an inbound record.
type Type string

const (
	TypeReturn     Type = "return"
	TypeNOC        Type = "noc"
	TypeDishonored Type = "dishonored"
	TypeContested  Type = "contested"
)

// Status represents the lifecycle state of a return record.
type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusApplied    Status = "applied"
	StatusReviewed   Status = "reviewed"
	StatusResolved   Status = "resolved"
)

// Record is one inbound correction or reversal.
type Record struct {
	ID            uuid.UUID
	TraceNumber   string // trace assigned by the returning bank
	OriginalTrace string // links back to the originating entry
	ReturnDate    time.Time
	Type          Type
	Code          string
	Description   string
	CorrectedData string // NOC payload, stored verbatim for re-keying
	Status        Status
	EntryID       *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// returnDescriptions is the fixed R-series code table.
var returnDescriptions = map[string]string{
	"R01": "Insufficient funds",
	"R02": "Account closed",
	"R03": "No account / unable to locate account",
	"R04": "Invalid account number",
	"R05": "Unauthorized debit to consumer account using corporate SEC code",
	"R06": "Returned per ODFI's request",
	"R07": "Authorization revoked by customer",
	"R08": "Payment stopped",
	"R09": "Uncollected funds",
	"R10": "Customer advises not authorized",
	"R11": "Customer advises entry not in accordance with the terms of authorization",
	"R12": "Branch sold to another DFI",
	"R13": "Invalid ACH routing number",
	"R14": "Representative payee deceased or unable to continue in that capacity",
	"R15": "Beneficiary or account holder deceased",
	"R16": "Account frozen",
	"R17": "File record edit criteria",
	"R18": "Improper effective entry date",
	"R19": "Amount field error",
	"R20": "Non-transaction account",
	"R21": "Invalid company identification",
	"R22": "Invalid individual ID number",
	"R23": "Credit entry refused by receiver",
	"R24": "Duplicate entry",
	"R25": "Addenda error",
	"R26": "Mandatory field error",
	"R27": "Trace number error",
	"R28": "Routing number check digit error",
	"R29": "Corporate customer advises not authorized",
	"R30": "RDFI not participant in check truncation program",
	"R31": "Permissible return entry",
	"R32": "RDFI non-settlement",
	"R33": "Return of XCK entry",
}

// nocDescriptions is the fixed C-series code table.
var nocDescriptions = map[string]string{
	"C01": "Incorrect DFI account number",
	"C02": "Incorrect routing number",
	"C03": "Incorrect routing number and incorrect DFI account number",
	"C04": "Incorrect individual name",
	"C05": "Incorrect transaction code",
	"C06": "Incorrect DFI account number and incorrect transaction code",
	"C07": "Incorrect routing number, DFI account number, and transaction code",
	"C08": "Incorrect receiving DFI identification",
	"C09": "Incorrect individual identification number",
	"C10": "Incorrect company name",
	"C11": "Incorrect company identification",
	"C12": "Incorrect company name and company identification",
	"C13": "Addenda format error",
}

// hardReturnCodes are terminal account conditions. Entries returned with
// one of these must never be retried automatically.
var hardReturnCodes = map[string]bool{
	"R02": true, // account closed
	"R03": true, // unknown account
	"R07": true, // authorization revoked
	"R08": true, // payment stopped
	"R10": true, // not authorized
	"R14": true, // representative payee deceased
	"R15": true, // account holder deceased
	"R16": true, // account frozen
	"R20": true, // non-transaction account
	"R29": true, // corporate not authorized
}

// retriableCodes are the only codes where a later retry can plausibly
// succeed: funds problems, not account problems.
var retriableCodes = map[string]bool{
	"R01": true, // insufficient funds
	"R09": true, // uncollected funds
}

// Classify maps a code to return or NOC. C-series codes are notifications
// of change; R-series codes are returns.
func Classify(code string) (Type, error) {
	code = strings.ToUpper(code)

	if _, ok := nocDescriptions[code]; ok {
		return TypeNOC, nil
	}

	if _, ok := returnDescriptions[code]; ok {
		return TypeReturn, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
}

// IsHardReturn reports whether the code names a terminal account condition.
func IsHardReturn(code string) bool {
	return hardReturnCodes[strings.ToUpper(code)]
}

// IsRetriable reports whether an automatic retry of the entry is allowed.
func IsRetriable(code string) bool {
	return retriableCodes[strings.ToUpper(code)]
}

// Describe returns the human-readable reason for a code, or the code itself
// when unknown.
func Describe(code string) string {
	code = strings.ToUpper(code)

	if d, ok := returnDescriptions[code]; ok {
		return d
	}

	if d, ok := nocDescriptions[code]; ok {
		return d
	}

	return code
}
