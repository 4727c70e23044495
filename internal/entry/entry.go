// Package entry defines the ledger entry: one instruction to move money to
// or from one bank account.
package entry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("entry not found")
	ErrNotCancellable = errors.New("entry can only be cancelled while pending")

	// ErrTraceExhausted means the 7-digit sequence space for an originator
	// routing number is used up. Recovering requires rotating the
	// originator routing number; it must never wrap silently.
	ErrTraceExhausted = errors.New("trace sequence exhausted for originator routing number")
)

// Direction says which way money moves relative to the receiver's account.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// AccountType is the receiving account's type.
type AccountType string

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
)

// Status represents the lifecycle state of an entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusSettled   Status = "settled"
	StatusReturned  Status = "returned"
	StatusCorrected Status = "corrected"
	StatusCancelled Status = "cancelled"
)

// NACHA transaction codes by (account type, direction).
const (
	CodeCheckingCredit = "22"
	CodeCheckingDebit  = "27"
	CodeSavingsCredit  = "32"
	CodeSavingsDebit   = "37"
)

// Entry represents one debit or credit instruction against one account.
// AccountCiphertext is vault output; the plaintext account number exists
// only transiently inside the file encoder.
type Entry struct {
	ID                uuid.UUID
	BatchID           uuid.UUID
	TransactionCode   string
	RoutingNumber     string // 9 digits: 8-digit routing id + check digit
	AccountCiphertext string
	AmountCents       int64
	PayeeName         string
	IndividualID      string
	TraceNumber       string // 15 digits, globally unique
	IsBusiness        bool
	Status            Status
	ReturnCode        string
	ReturnPayload     string
	ExternalRef       string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// Direction is derived from the transaction code's second digit.
func (e *Entry) Direction() Direction {
	switch e.TransactionCode {
	case CodeCheckingDebit, CodeSavingsDebit:
		return Debit
	default:
		return Credit
	}
}

// RoutingID returns the 8-digit routing component without the check digit.
func (e *Entry) RoutingID() string {
	if len(e.RoutingNumber) != 9 {
		return e.RoutingNumber
	}

	return e.RoutingNumber[:8]
}

// TransactionCode maps (account type, direction) to the two-digit NACHA
// transaction code.
func TransactionCode(accountType AccountType, direction Direction) (string, error) {
	switch {
	case accountType == Checking && direction == Credit:
		return CodeCheckingCredit, nil
	case accountType == Checking && direction == Debit:
		return CodeCheckingDebit, nil
	case accountType == Savings && direction == Credit:
		return CodeSavingsCredit, nil
	case accountType == Savings && direction == Debit:
		return CodeSavingsDebit, nil
	default:
		return "", fmt.Errorf("no transaction code for account type %q, direction %q", accountType, direction)
	}
}

// Terminal reports whether the entry has reached a state no return or
// correction can move it out of.
func (s Status) Terminal() bool {
	return s == StatusReturned || s == StatusCorrected || s == StatusCancelled
}
