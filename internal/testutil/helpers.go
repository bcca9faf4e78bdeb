package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

// DiscardLogger returns an slog.Logger that writes to io.Discard.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Decimal parses s or fails the test.
func Decimal(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

// LongZeroAddress returns the 0x-prefixed EVM address of entity 0.0.num.
func LongZeroAddress(num uint64) string {
	const digits = "0123456789abcdef"
	buf := []byte("0x0000000000000000000000000000000000000000")
	for i := len(buf) - 1; num > 0 && i >= 2; i-- {
		buf[i] = digits[num%16]
		num /= 16
	}
	return string(buf)
}
