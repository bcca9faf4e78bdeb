package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ideomind/unreal-dashboard/internal/pkg/env"
	"github.com/ideomind/unreal-dashboard/internal/services/payment_verifier"
)

// config is the process configuration read from the environment.
type config struct {
	HTTPAddr    string
	Environment string
	DrainDelay  time.Duration

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	MirrorNodeURL   string
	MirrorRateLimit float64

	TokenID        string
	TokenDecimals  int32
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration

	TreasuryAddress string
	CreditsPerUSD   int64

	SNSTopicARN string
	AWSRegion   string

	OTLPEndpoint string
}

func loadConfig() (config, error) {
	defaults := payment_verifier.ConfigDefaults()

	cfg := config{
		HTTPAddr:        env.Get("HTTP_ADDR", ":8080"),
		Environment:     env.Get("ENVIRONMENT", "development"),
		DatabaseURL:     env.Get("DATABASE_URL", ""),
		RedisAddr:       env.Get("REDIS_ADDR", ""),
		RedisPassword:   env.Get("REDIS_PASSWORD", ""),
		MirrorNodeURL:   env.Get("MIRROR_NODE_URL", "https://testnet.mirrornode.hedera.com"),
		TokenID:         env.Get("USDC_TOKEN_ID", defaults.TokenID),
		TreasuryAddress: env.Get("TREASURY_ADDRESS", ""),
		SNSTopicARN:     env.Get("SNS_TOPIC_ARN", ""),
		AWSRegion:       env.Get("AWS_REGION", "us-east-1"),
		OTLPEndpoint:    env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var errs []error
	var err error

	if cfg.MirrorRateLimit, err = env.GetFloat("MIRROR_RATE_LIMIT", 50); err != nil {
		errs = append(errs, err)
	}

	decimals, err := env.GetInt("USDC_DECIMALS", int(defaults.TokenDecimals))
	if err != nil {
		errs = append(errs, err)
	} else if decimals < 0 || decimals > 18 {
		errs = append(errs, fmt.Errorf("USDC_DECIMALS must be between 0 and 18, got %d", decimals))
	}
	cfg.TokenDecimals = int32(decimals)

	if cfg.MaxAttempts, err = env.GetInt("VERIFY_MAX_ATTEMPTS", defaults.MaxAttempts); err != nil {
		errs = append(errs, err)
	} else if cfg.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("VERIFY_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts))
	}
	if cfg.Backoff, err = env.GetDuration("VERIFY_BACKOFF", defaults.Backoff); err != nil {
		errs = append(errs, err)
	}
	if cfg.AttemptTimeout, err = env.GetDuration("VERIFY_ATTEMPT_TIMEOUT", defaults.AttemptTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.DrainDelay, err = env.GetDuration("SHUTDOWN_DRAIN_DELAY", 0); err != nil {
		errs = append(errs, err)
	}

	credits, err := env.GetInt("CREDITS_PER_USD", 100)
	if err != nil {
		errs = append(errs, err)
	} else if credits < 1 {
		errs = append(errs, fmt.Errorf("CREDITS_PER_USD must be positive, got %d", credits))
	}
	cfg.CreditsPerUSD = int64(credits)

	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// worstCaseVerification is the longest a single verification can take.
func (c config) worstCaseVerification() time.Duration {
	backoff := max(c.Backoff, 0)
	return time.Duration(c.MaxAttempts)*c.AttemptTimeout + time.Duration(c.MaxAttempts-1)*backoff
}

// requestTimeout leaves headroom over a full verification for the
// database work that follows it.
func (c config) requestTimeout() time.Duration {
	return c.worstCaseVerification() + 10*time.Second
}

func (c config) writeTimeout() time.Duration {
	return c.requestTimeout() + 10*time.Second
}

// lockTTL outlives any request holding the lock.
func (c config) lockTTL() time.Duration {
	return max(c.writeTimeout()+30*time.Second, 2*time.Minute)
}
