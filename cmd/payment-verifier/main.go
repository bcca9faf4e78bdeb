// Package main runs the payment verification API: on-chain USDC payment
// checks against the Hedera mirror node and credit top-ups for dashboard users.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"

	httpadapter "github.com/ideomind/unreal-dashboard/internal/adapters/inbound/http"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/memory"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/mirrornode"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/postgres"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/redis"
	snsadapter "github.com/ideomind/unreal-dashboard/internal/adapters/outbound/sns"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/telemetry"
	"github.com/ideomind/unreal-dashboard/internal/pkg/env"
	"github.com/ideomind/unreal-dashboard/internal/ports/outbound"
	"github.com/ideomind/unreal-dashboard/internal/services/billing"
	"github.com/ideomind/unreal-dashboard/internal/services/payment_verifier"
	"github.com/ideomind/unreal-dashboard/internal/services/shared"
)

const serviceName = "payment-verifier"

// Build-time variables - can be set via ldflags, otherwise populated from Go's build info.
var (
	GitCommit string
	GitBranch string
	BuildTime string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "" {
					GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	}
}

func main() {
	envFile := flag.String("env-file", ".env", "Optional KEY=value file loaded before reading the environment")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s\n", serviceName)
		fmt.Printf("  Commit:     %s\n", GitCommit)
		fmt.Printf("  Branch:     %s\n", GitBranch)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	if err := env.Load(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(1)
	}

	logger := env.NewLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting "+serviceName, "commit", GitCommit, "environment", cfg.Environment, "addr", cfg.HTTPAddr)

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	serviceInfo := telemetry.ServiceInfo{
		ServiceName:    serviceName,
		ServiceVersion: GitCommit,
		Environment:    cfg.Environment,
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceInfo:  serviceInfo,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer flush(logger, "tracer", shutdownTracer)

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceInfo:  serviceInfo,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer flush(logger, "metrics", shutdownMetrics)

	appTelemetry, err := shared.NewAppTelemetry()
	if err != nil {
		return fmt.Errorf("creating app telemetry: %w", err)
	}
	httpMetrics, err := telemetry.NewHTTPMetrics("mirrornode")
	if err != nil {
		return fmt.Errorf("creating http metrics: %w", err)
	}

	mirror, err := mirrornode.NewClient(mirrornode.ClientConfig{
		BaseURL:         cfg.MirrorNodeURL,
		RateLimitPerSec: cfg.MirrorRateLimit,
		Logger:          logger,
		Observe:         httpMetrics.ObserveRequest,
	})
	if err != nil {
		return fmt.Errorf("creating mirror node client: %w", err)
	}

	verifier, err := payment_verifier.NewService(payment_verifier.Config{
		TokenID:        cfg.TokenID,
		TokenDecimals:  cfg.TokenDecimals,
		MaxAttempts:    cfg.MaxAttempts,
		Backoff:        cfg.Backoff,
		AttemptTimeout: cfg.AttemptTimeout,
		Logger:         logger,
	}, mirror, appTelemetry)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}

	deps := map[string]shared.PingFunc{}

	var (
		txm    outbound.TxManager
		users  outbound.UserRepository
		ledger outbound.BillingRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		deps["postgres"] = pool.Ping

		if txm, err = postgres.NewTxManager(pool, logger); err != nil {
			return fmt.Errorf("creating tx manager: %w", err)
		}
		if users, err = postgres.NewUserRepository(pool, logger); err != nil {
			return fmt.Errorf("creating user repository: %w", err)
		}
		if ledger, err = postgres.NewBillingRepository(pool, logger); err != nil {
			return fmt.Errorf("creating billing repository: %w", err)
		}
		logger.Info("PostgreSQL connected")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.NewStore()
		txm, users, ledger = store, store, store
	}

	lockTTL := cfg.lockTTL()
	var lock outbound.ReferenceLock
	if cfg.RedisAddr != "" {
		redisLock, err := redis.NewReferenceLock(redis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			TTL:       lockTTL,
			KeyPrefix: "unreal",
		}, logger)
		if err != nil {
			return fmt.Errorf("creating redis lock: %w", err)
		}
		defer redisLock.Close()
		deps["redis"] = redisLock.Ping
		lock = redisLock
		logger.Info("Redis lock enabled", "addr", cfg.RedisAddr, "ttl", lockTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process lock")
		lock = memory.NewReferenceLock(lockTTL)
	}

	var events outbound.EventSink
	if cfg.SNSTopicARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		sink, err := snsadapter.NewEventSink(awssns.NewFromConfig(awsCfg), snsadapter.Config{
			TopicARN: cfg.SNSTopicARN,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("creating SNS event sink: %w", err)
		}
		defer sink.Close()
		events = sink
		logger.Info("SNS event sink enabled", "topic", cfg.SNSTopicARN)
	}

	var billingService *billing.Service
	if cfg.TreasuryAddress != "" {
		billingService, err = billing.NewService(billing.Config{
			TreasuryAddress: cfg.TreasuryAddress,
			CreditsPerUSD:   cfg.CreditsPerUSD,
			Metrics:         appTelemetry,
			Logger:          logger,
		}, verifier, txm, users, ledger, lock, events)
		if err != nil {
			return fmt.Errorf("creating billing service: %w", err)
		}
	} else {
		logger.Warn("TREASURY_ADDRESS not set, billing routes disabled")
	}

	var api *httpadapter.Handler
	if billingService != nil {
		api, err = httpadapter.NewHandler(verifier, billingService, logger)
	} else {
		api, err = httpadapter.NewHandler(verifier, nil, logger)
	}
	if err != nil {
		return fmt.Errorf("creating http handler: %w", err)
	}

	checker := shared.NewDependencyChecker(deps, 10*time.Second, logger)
	checkerCtx, stopChecker := context.WithCancel(context.Background())
	defer stopChecker()
	go checker.Run(checkerCtx)

	var shuttingDown atomic.Bool
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Addr:           cfg.HTTPAddr,
		WriteTimeout:   cfg.writeTimeout(),
		RequestTimeout: cfg.requestTimeout(),
		Logger:         logger,
	}, api, httpadapter.NewHealthHandler(checker, &shuttingDown, logger))

	serverErr := server.Start()

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shuttingDown.Store(true)
	if cfg.DrainDelay > 0 {
		logger.Info("draining before shutdown", "delay", cfg.DrainDelay)
		time.Sleep(cfg.DrainDelay)
	}
	if err := server.Shutdown(cfg.writeTimeout()); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func flush(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("failed to flush "+name, "error", err)
	}
}
