// Package mirrornode implements the TransactionLookup port against the Hedera
// mirror node REST API. It provides:
//   - EVM transaction hash and ledger-native transaction id lookups
//   - Classification of failures into not-found, rejected, malformed and transient
//   - Rate limiting to stay within public API limits
//
// The client performs one HTTP attempt per call; retries belong to the caller.
package mirrornode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/pkg/httpclient"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.TransactionLookup.
var _ outbound.TransactionLookup = (*Client)(nil)

var (
	// 0.0.1234-1700000000-000000001
	dashTransactionID = regexp.MustCompile(`^\d+\.\d+\.\d+-\d+-\d+$`)
	evmTxHash         = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	ledgerTxHash      = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{96}$`)
)

// ClientConfig holds configuration for the mirror node client.
type ClientConfig struct {
	// BaseURL is the mirror node root, without the /api/v1 suffix.
	// Defaults to https://testnet.mirrornode.hedera.com
	BaseURL string

	// Timeout is the maximum time to wait for a single HTTP request.
	Timeout time.Duration

	// RateLimitPerSec is the rate limit in requests per second.
	RateLimitPerSec float64

	// Logger is the structured logger for the client.
	Logger *slog.Logger

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Observe is called after every HTTP round trip. Optional.
	Observe httpclient.ObserveFunc
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		BaseURL:         "https://testnet.mirrornode.hedera.com",
		Timeout:         10 * time.Second,
		RateLimitPerSec: 50, // public mirror nodes allow ~100 rps per IP
		Logger:          slog.Default(),
	}
}

// Client implements TransactionLookup using the mirror node REST API.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates a new mirror node client.
func NewClient(config ClientConfig) (*Client, error) {
	defaults := ClientConfigDefaults()
	applyDefaults(&config, defaults)

	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid BaseURL %q", config.BaseURL)
	}

	logger := config.Logger.With("component", "mirrornode-client")

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http: httpclient.NewClient(httpclient.Config{
			Timeout:    config.Timeout,
			RateLimit:  rate.Limit(config.RateLimitPerSec),
			RateBurst:  1,
			HTTPClient: config.HTTPClient,
		}, logger, config.Observe),
		logger: logger,
	}, nil
}

// applyDefaults fills zero-value fields in config with values from defaults.
func applyDefaults(config *ClientConfig, defaults ClientConfig) {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RateLimitPerSec == 0 {
		config.RateLimitPerSec = defaults.RateLimitPerSec
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// LookupTransaction resolves reference to a finalized transaction.
//
// An EVM transaction hash is first resolved to the ledger transaction hash via
// the contract results endpoint; ledger hashes and native transaction ids go
// straight to the transactions endpoint.
func (c *Client) LookupTransaction(ctx context.Context, reference string) (*outbound.MirrorTransaction, error) {
	reference = entity.NormalizeReference(reference)

	var txPath string
	switch {
	case dashTransactionID.MatchString(reference), ledgerTxHash.MatchString(reference):
		txPath = reference
	case evmTxHash.MatchString(reference):
		hash, err := c.resolveLedgerHash(ctx, reference)
		if err != nil {
			return nil, err
		}
		txPath = hash
	default:
		return nil, fmt.Errorf("%w: unsupported transaction reference %q", outbound.ErrLookupRejected, reference)
	}

	return c.fetchTransaction(ctx, txPath)
}

func (c *Client) resolveLedgerHash(ctx context.Context, evmHash string) (string, error) {
	var result contractResultResponse
	if err := c.get(ctx, "/api/v1/contracts/results/"+url.PathEscape(evmHash), &result); err != nil {
		return "", fmt.Errorf("contract result %s: %w", evmHash, err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("contract result %s: %w: missing hash", evmHash, outbound.ErrMalformedResponse)
	}

	c.logger.Debug("resolved EVM hash", "evmHash", evmHash, "ledgerHash", result.Hash)
	return result.Hash, nil
}

func (c *Client) fetchTransaction(ctx context.Context, txPath string) (*outbound.MirrorTransaction, error) {
	var resp transactionsResponse
	if err := c.get(ctx, "/api/v1/transactions/"+url.PathEscape(txPath), &resp); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txPath, err)
	}

	if len(resp.Transactions) == 0 {
		return nil, fmt.Errorf("transaction %s: %w: empty transactions list", txPath, outbound.ErrMalformedResponse)
	}

	tx := resp.Transactions[0]
	if tx.Result == "" || tx.TransactionID == "" {
		return nil, fmt.Errorf("transaction %s: %w: missing result or transaction_id", txPath, outbound.ErrMalformedResponse)
	}

	transfers := make([]entity.TokenTransfer, 0, len(tx.TokenTransfers))
	for i, tt := range tx.TokenTransfers {
		if tt.TokenID == "" || tt.Account == "" || tt.Amount == nil {
			return nil, fmt.Errorf("transaction %s: %w: incomplete token transfer at index %d", txPath, outbound.ErrMalformedResponse, i)
		}
		transfers = append(transfers, entity.TokenTransfer{
			TokenID:    tt.TokenID,
			Account:    tt.Account,
			Amount:     *tt.Amount,
			IsApproval: tt.IsApproval,
		})
	}

	return &outbound.MirrorTransaction{
		TransactionID:      tx.TransactionID,
		Result:             tx.Result,
		ConsensusTimestamp: tx.ConsensusTimestamp,
		TokenTransfers:     transfers,
	}, nil
}

// get performs a single GET and maps failures onto the lookup error kinds.
func (c *Client) get(ctx context.Context, path string, result any) error {
	err := c.http.GetJSON(ctx, httpclient.RequestConfig{URL: c.baseURL + path}, result)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", outbound.ErrTransactionNotFound, err)
	case errors.As(err, &statusErr) && !statusErr.Temporary():
		return fmt.Errorf("%w: %w", outbound.ErrLookupRejected, err)
	case errors.Is(err, httpclient.ErrDecode), errors.Is(err, httpclient.ErrBodyTooLarge):
		return fmt.Errorf("%w: %w", outbound.ErrMalformedResponse, err)
	default:
		// Network errors, timeouts, 429 and 5xx.
		return err
	}
}
