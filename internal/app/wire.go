package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/preyanshu/verdict/internal/blob/s3"
	"github.com/preyanshu/verdict/internal/cache/redis"
	"github.com/preyanshu/verdict/internal/chain"
	"github.com/preyanshu/verdict/internal/config"
	"github.com/preyanshu/verdict/internal/crypto"
	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/engine"
	"github.com/preyanshu/verdict/internal/metrics"
	"github.com/preyanshu/verdict/internal/notify"
	"github.com/preyanshu/verdict/internal/oracle"
	"github.com/preyanshu/verdict/internal/redemption"
	"github.com/preyanshu/verdict/internal/service"
	"github.com/preyanshu/verdict/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Interface fields stay nil
// when the backing store is unavailable.
type Dependencies struct {
	// Clients, kept for health checks.
	Redis    *redis.Client
	Postgres *postgres.Client
	S3       *s3blob.Client

	// Caches
	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Stores
	AuditStore      domain.AuditStore
	RedemptionStore domain.RedemptionStore
	Archiver        *s3blob.Archiver

	Metrics  *metrics.Registry
	Notifier *notify.Notifier
	Catalog  *oracle.Catalog

	// Services
	Markets     *service.MarketService
	Feeds       *service.FeedService
	Audits      *service.AuditService
	Attempts    *redemption.Store
	Redemptions *service.RedemptionService
	Keyring     *chain.Keyring
}

// needsLedger returns true for modes that submit or read ledger state.
func needsLedger(mode string) bool {
	return mode == "server" || mode == "redeem"
}

// storesRequired returns true when Redis and Postgres failures are fatal.
// The one-shot modes run degraded without them.
func storesRequired(mode string) bool {
	return mode == "server"
}

// Wire constructs all concrete dependency implementations from cfg. ctx is
// the application lifetime: background redemptions run under it.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics:  metrics.New(),
		Notifier: notify.FromConfig(cfg.Notify, logger),
		Catalog:  oracle.DefaultCatalog(),
		Attempts: redemption.NewStore(),
		Keyring:  chain.NewKeyring(),
	}
	required := storesRequired(cfg.Mode)

	// --- Redis ---
	redisClient, err := redis.New(ctx, cfg.Redis)
	switch {
	case err == nil:
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Redis = redisClient
		deps.PriceCache = redis.NewPriceCache(redisClient, 0)
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Engine.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	case required:
		return fail(fmt.Errorf("wire: redis: %w", err))
	default:
		logger.WarnContext(ctx, "redis unavailable; running without cache or event bus", slog.String("error", err.Error()))
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, cfg.Postgres)
	if err == nil && cfg.Postgres.RunMigrations {
		if err = pgClient.RunMigrations(ctx); err != nil {
			pgClient.Close()
			err = fmt.Errorf("migrations: %w", err)
		}
	}
	switch {
	case err == nil:
		closers = append(closers, pgClient.Close)
		deps.Postgres = pgClient
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
		deps.RedemptionStore = postgres.NewRedemptionStore(pgClient.Pool())
	case required:
		return fail(fmt.Errorf("wire: postgres: %w", err))
	default:
		logger.WarnContext(ctx, "postgres unavailable; history and audit log disabled", slog.String("error", err.Error()))
	}

	// --- S3 archive (server mode only) ---
	if cfg.Mode == "server" && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.S3 = s3Client
		if deps.RedemptionStore != nil && deps.AuditStore != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				s3blob.NewReader(s3Client),
				deps.RedemptionStore,
				deps.AuditStore,
				logger,
			)
		}
	}

	// --- Markets and oracle ---
	assigner, err := oracle.NewAssigner(deps.Catalog, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: oracle assigner: %w", err))
	}
	engineClient := engine.NewClient(cfg.Engine.BaseURL, cfg.Engine.Timeout.Duration, logger)
	deps.Markets = service.NewMarketService(engineClient, deps.MarketCache, assigner, deps.Metrics, logger)
	deps.Feeds = service.NewFeedService(deps.Catalog, deps.PriceCache, logger)

	fetcher := oracle.NewHTTPFetcher(oracle.FetcherConfig{
		Timeout:           cfg.Oracle.Timeout.Duration,
		PriceField:        cfg.Oracle.PriceField,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
		BreakerFailures:   cfg.Oracle.BreakerFailures,
		BreakerCooldown:   cfg.Oracle.BreakerCooldown.Duration,
	}, deps.Metrics, logger)
	deps.Audits = service.NewAuditService(service.AuditDeps{
		Markets:  deps.Markets,
		Auditor:  oracle.NewAuditor(deps.Catalog, fetcher, cfg.Oracle.MaxConcurrency, logger),
		Results:  oracle.NewResultStore(),
		Prices:   deps.PriceCache,
		Log:      deps.AuditStore,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
	}, logger)

	// --- Ledger and redemption ---
	if needsLedger(cfg.Mode) {
		backend, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		if c, ok := backend.(interface{ Close() }); ok {
			closers = append(closers, c.Close)
		}
		orchestrator, err := wireRedemption(ctx, cfg, deps, backend, logger)
		if err != nil {
			return fail(err)
		}
		deps.Redemptions = service.NewRedemptionService(ctx, orchestrator, deps.Attempts, deps.RedemptionStore, logger)
	}

	return deps, cleanup, nil
}

func wireRedemption(ctx context.Context, cfg *config.Config, deps *Dependencies, backend chain.Backend, logger *slog.Logger) (*redemption.Orchestrator, error) {
	gasPrice, err := cfg.Chain.GasPriceWei()
	if err != nil {
		return nil, fmt.Errorf("wire: chain: %w", err)
	}
	gas := chain.GasPolicy{Price: gasPrice, Limit: cfg.Chain.GasLimit}

	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		key, err := crypto.LoadKey(crypto.KeySource{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("wire: wallet: %w", err)
		}
		w := chain.NewKeyWallet(crypto.NewSigner(key), backend, cfg.Chain.RPCFor, chain.Dial, logger)
		deps.Keyring.Add(w)
		logger.InfoContext(ctx, "wallet connected", slog.String("wallet", w.Address().Hex()))
	}

	recorder := service.NewRedemptionRecorder(service.RedemptionRecorderDeps{
		History:  deps.RedemptionStore,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
		InFlight: deps.Metrics.InFlight,
		Running:  deps.Attempts.InFlight,
	}, logger)

	return redemption.New(redemption.Config{
		ChainID:     cfg.Chain.ChainID,
		SettleDelay: cfg.Chain.SettleDelay.Duration,
		LockTTL:     cfg.Chain.LockTTL.Duration,
	}, redemption.Deps{
		Guard:      chain.NewChainGuard(cfg.Chain.SwitchTimeout.Duration, logger),
		Allowances: chain.NewAllowanceManager(backend, gas, logger),
		Ledger:     chain.NewLedger(backend, common.HexToAddress(cfg.Chain.RouterAddress), gas, logger),
		Confirm:    chain.NewConfirmer(backend, cfg.Chain.PollInterval.Duration, cfg.Chain.ConfirmTimeout.Duration, logger),
		Wallets:    deps.Keyring,
		Markets:    deps.Markets,
		Store:      deps.Attempts,
		Lock:       deps.LockManager,
		Observer:   recorder,
	}, logger), nil
}
