package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "whole number", in: "250", want: "250"},
		{name: "two decimals", in: "0.10", want: "0.1"},
		{name: "zero rejected", in: "0", wantErr: true},
		{name: "negative rejected", in: "-5.00", wantErr: true},
		{name: "three decimals rejected", in: "10.001", wantErr: true},
		{name: "garbage rejected", in: "ten dollars", wantErr: true},
		{name: "empty rejected", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "amount", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDebitCreditPrecision(t *testing.T) {
	from := &Account{AccountNumber: "ACC001", Balance: decimal.RequireFromString("1000.00")}
	to := &Account{AccountNumber: "ACC002", Balance: decimal.RequireFromString("500.00")}
	amount := decimal.RequireFromString("0.10")

	debited, err := Debit(from, amount)
	require.NoError(t, err)
	assert.Equal(t, "999.90", debited.StringFixed(2))
	assert.Equal(t, "500.10", Credit(to, amount).StringFixed(2))
}

func TestDebitInsufficientFunds(t *testing.T) {
	from := &Account{AccountNumber: "ACC001", Balance: decimal.RequireFromString("100.00")}

	_, err := Debit(from, decimal.RequireFromString("200.00"))

	var ife *InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, "ACC001", ife.AccountNumber)
	assert.Contains(t, ife.Error(), "Requested: 200.00, Available: 100.00")
}

func TestDebitExactBalanceToZero(t *testing.T) {
	from := &Account{AccountNumber: "ACC001", Balance: decimal.RequireFromString("42.42")}

	got, err := Debit(from, decimal.RequireFromString("42.42"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusPending.CanTransitionTo(StatusFailed))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusFailed))
	assert.False(t, StatusFailed.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusPending.CanTransitionTo(StatusReversed))

	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
