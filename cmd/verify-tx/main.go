// Package main verifies a single payment against the mirror node from the
// command line and prints the result as JSON.
//
// Usage:
//
//	verify-tx -tx 0.0.1234@1700000000.000000001 -from 0x...04d2 -to 0x...162e -amount 10.5
//
// The exit status is 0 when the payment verified, 2 when it did not and 1 on
// usage errors.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/mirrornode"
	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/pkg/env"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
	"github.com/ideomind/unreal-dashboard/internal/services/payment_verifier"
)

const (
	exitVerified   = 0
	exitUsage      = 1
	exitUnverified = 2
)

func main() {
	txRef := flag.String("tx", "", "Transaction hash or id (required)")
	from := flag.String("from", "", "Expected sender EVM address (required)")
	to := flag.String("to", "", "Expected receiver EVM address (required)")
	amount := flag.String("amount", "", "Expected USDC amount, e.g. 10.5 (required)")
	mirrorURL := flag.String("mirror", env.Get("MIRROR_NODE_URL", "https://testnet.mirrornode.hedera.com"), "Mirror node base URL")
	tokenID := flag.String("token", env.Get("USDC_TOKEN_ID", "0.0.429274"), "Token id to match transfers against")
	decimals := flag.Int("decimals", 6, "Token decimals")
	attempts := flag.Int("attempts", 3, "Total lookup attempts")
	backoff := flag.Duration("backoff", 2*time.Second, "Pause between lookups")
	flag.Parse()

	logger := env.NewLogger(os.Stderr, slog.LevelWarn)

	expected, err := decimal.NewFromString(*amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -amount %q: %v\n", *amount, err)
		os.Exit(exitUsage)
	}
	req := entity.PaymentRequest{
		TransactionReference: *txRef,
		SenderAddress:        *from,
		ReceiverAddress:      *to,
		ExpectedAmount:       expected,
	}
	if err := req.Validate(); err != nil {
		flag.Usage()
		os.Exit(exitUsage)
	}

	client, err := mirrornode.NewClient(mirrornode.ClientConfig{
		BaseURL: *mirrorURL,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	verified, err := verify(ctx, client, payment_verifier.Config{
		TokenID:       *tokenID,
		TokenDecimals: int32(*decimals),
		MaxAttempts:   *attempts,
		Backoff:       *backoff,
		Logger:        logger,
	}, req, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	if !verified {
		os.Exit(exitUnverified)
	}
	os.Exit(exitVerified)
}

// verify runs one verification and writes the indented JSON result to w.
func verify(ctx context.Context, lookup outbound.TransactionLookup, cfg payment_verifier.Config, req entity.PaymentRequest, w io.Writer) (bool, error) {
	verifier, err := payment_verifier.NewService(cfg, lookup, nil)
	if err != nil {
		return false, fmt.Errorf("creating verifier: %w", err)
	}

	result := verifier.Verify(ctx, req)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return false, fmt.Errorf("encoding result: %w", err)
	}
	return result.Verified, nil
}
