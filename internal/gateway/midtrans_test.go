package gateway

import (
	"testing"

	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOutcome(t *testing.T) {
	tests := []struct {
		status, fraud string
		want          Outcome
	}{
		{"settlement", "", OutcomePaid},
		{"capture", "accept", OutcomePaid},
		{"capture", "challenge", OutcomePending},
		{"pending", "", OutcomePending},
		{"deny", "deny", OutcomeFailed},
		{"failure", "", OutcomeFailed},
		{"expire", "", OutcomeCancelled},
		{"cancel", "", OutcomeCancelled},
		{"refund", "", OutcomePending},
	}
	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fraud, func(t *testing.T) {
			s := &Status{TransactionStatus: tt.status, FraudStatus: tt.fraud}
			assert.Equal(t, tt.want, s.Outcome())
		})
	}
}

func TestParseGrossAmount(t *testing.T) {
	amount, err := ParseGrossAmount("50000.00")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)

	amount, err = ParseGrossAmount("15000")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), amount)

	_, err = ParseGrossAmount("10.50")
	assert.Error(t, err)

	_, err = ParseGrossAmount("abc")
	assert.Error(t, err)
}

func TestStatusFrom(t *testing.T) {
	s, err := statusFrom(&coreapi.TransactionStatusResponse{
		OrderID:           "DONABC123",
		TransactionID:     "tx-1",
		TransactionStatus: "settlement",
		GrossAmount:       "25000.00",
		PaymentType:       "gopay",
	})
	require.NoError(t, err)
	assert.Equal(t, "DONABC123", s.OrderID)
	assert.Equal(t, int64(25000), s.GrossAmount)
	assert.Equal(t, OutcomePaid, s.Outcome())
}
