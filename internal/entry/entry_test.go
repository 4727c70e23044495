package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCode(t *testing.T) {
	tests := []struct {
		accountType AccountType
		direction   Direction
		want        string
	}{
		{Checking, Credit, "22"},
		{Checking, Debit, "27"},
		{Savings, Credit, "32"},
		{Savings, Debit, "37"},
	}

	for _, tt := range tests {
		got, err := TransactionCode(tt.accountType, tt.direction)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := TransactionCode("money market", Credit)
	require.Error(t, err)
}

func TestDirectionFromCode(t *testing.T) {
	assert.Equal(t, Debit, (&Entry{TransactionCode: CodeCheckingDebit}).Direction())
	assert.Equal(t, Debit, (&Entry{TransactionCode: CodeSavingsDebit}).Direction())
	assert.Equal(t, Credit, (&Entry{TransactionCode: CodeCheckingCredit}).Direction())
	assert.Equal(t, Credit, (&Entry{TransactionCode: CodeSavingsCredit}).Direction())
}

func TestRoutingID(t *testing.T) {
	assert.Equal(t, "07640125", (&Entry{RoutingNumber: "076401251"}).RoutingID())
	assert.Equal(t, "0764012", (&Entry{RoutingNumber: "0764012"}).RoutingID())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusReturned.Terminal())
	assert.True(t, StatusCorrected.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusSettled.Terminal())
}
