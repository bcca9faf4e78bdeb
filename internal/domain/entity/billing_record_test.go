package entity

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewBillingRecord(t *testing.T) {
	usd := decimal.RequireFromString("10.5")

	tests := []struct {
		name        string
		userID      int64
		credits     int64
		amountUSD   decimal.Decimal
		txHash      string
		status      BillingStatus
		wantErr     bool
		errContains string
	}{
		{name: "valid", userID: 1, credits: 1050, amountUSD: usd, txHash: "0xabc", status: BillingStatusCompleted},
		{name: "pending", userID: 1, credits: 1050, amountUSD: usd, txHash: "0xabc", status: BillingStatusPending},
		{name: "zero userID", userID: 0, credits: 1050, amountUSD: usd, txHash: "0xabc", status: BillingStatusCompleted, wantErr: true, errContains: "userID must be positive"},
		{name: "zero credits", userID: 1, credits: 0, amountUSD: usd, txHash: "0xabc", status: BillingStatusCompleted, wantErr: true, errContains: "credits must be positive"},
		{name: "negative amount", userID: 1, credits: 1, amountUSD: decimal.NewFromInt(-1), txHash: "0xabc", status: BillingStatusCompleted, wantErr: true, errContains: "amountUSD must be positive"},
		{name: "empty tx hash", userID: 1, credits: 1, amountUSD: usd, txHash: "", status: BillingStatusCompleted, wantErr: true, errContains: "txHash must not be empty"},
		{name: "unknown status", userID: 1, credits: 1, amountUSD: usd, txHash: "0xabc", status: "refunded", wantErr: true, errContains: "unknown billing status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewBillingRecord(tt.userID, tt.credits, tt.amountUSD, tt.txHash, tt.status)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBillingRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewBillingRecord() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if rec.TxHash != tt.txHash || rec.Credits != tt.credits {
				t.Errorf("NewBillingRecord() = %+v", rec)
			}
		})
	}
}

func TestCreditsFor(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		rate    int64
		want    int64
		wantErr bool
	}{
		{name: "one dollar", amount: "1", rate: 100, want: 100},
		{name: "fractional dollars", amount: "10.5", rate: 100, want: 1050},
		{name: "fraction of a credit dropped", amount: "0.019", rate: 100, want: 1},
		{name: "less than one credit", amount: "0.001", rate: 100, wantErr: true},
		{name: "zero rate", amount: "1", rate: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreditsFor(decimal.RequireFromString(tt.amount), tt.rate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreditsFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CreditsFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
