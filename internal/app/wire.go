package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polyedge/internal/blob/s3"
	"github.com/alanyoungcy/polyedge/internal/cache/redis"
	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/notify"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/service"
	"github.com/alanyoungcy/polyedge/internal/store/memory"
	"github.com/alanyoungcy/polyedge/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Records
	Accounts    domain.AccountStore
	Trades      domain.TradeStore
	Ledger      domain.Ledger
	Leaderboard domain.LeaderboardStore
	Profiles    domain.ProfileStore
	Audit       domain.AuditStore

	// Shared state
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter // nil in memory mode
	SignalBus   domain.SignalBus
	Selection   domain.SelectionStore
	MarketCache domain.MarketListCache

	// Archive is nil unless S3 is enabled.
	Archive *s3blob.ArchiveImpl

	Notifier *notify.Notifier
	Gamma    *polymarket.GammaClient
	Data     *polymarket.DataClient

	// Checks are probed by the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that releases resources in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	if cfg.UsesPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.PostgresDSN(),
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Accounts = postgres.NewAccountStore(pool)
		deps.Trades = postgres.NewTradeStore(pool)
		deps.Ledger = postgres.NewLedger(pool)
		deps.Leaderboard = postgres.NewLeaderboardStore(pool)
		deps.Profiles = postgres.NewProfileStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping

		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  "polyedge:",
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Selection = redis.NewSelectionStore(redisClient)
		deps.MarketCache = redis.NewMarketListCache(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		logger.WarnContext(ctx, "wire: using in-memory store; data is lost on exit")
		db := memory.NewDB()
		deps.Accounts = db.Accounts()
		deps.Trades = db.Trades()
		deps.Ledger = db.Ledger()
		deps.Leaderboard = db.Leaderboard()
		deps.Profiles = db.Profiles()
		deps.Audit = db.Audit()

		deps.Locks = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
		deps.Selection = memory.NewSelectionStore()
		deps.MarketCache = memory.NewMarketListCache()
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archive = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), deps.Audit)
		deps.Checks["s3"] = s3Client.Health
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	fetcher := polymarket.NewMirrorFetcher(cfg.Polymarket.Mirrors, cfg.Polymarket.RequestTimeout.Duration, logger)
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, fetcher)
	deps.Data = polymarket.NewDataClient(cfg.Polymarket.DataHost, fetcher)

	return deps, cleanup, nil
}

// Services are the use-case objects built over Dependencies.
type Services struct {
	Evaluations *service.EvaluationService
	Selection   *service.SelectionService
	Markets     *service.MarketService
	Analytics   *service.AnalyticsService
	Leaderboard *service.LeaderboardService
}

// NewServices builds the service layer from deps and cfg.
func NewServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *Services {
	evalDeps := service.EvaluationDeps{
		Accounts: deps.Accounts,
		Trades:   deps.Trades,
		Ledger:   deps.Ledger,
		Audit:    deps.Audit,
		Locks:    deps.Locks,
		Bus:      deps.SignalBus,
	}
	if deps.Notifier.Enabled() {
		evalDeps.Notifier = deps.Notifier
	}
	if deps.Archive != nil {
		evalDeps.Archiver = deps.Archive
	}

	return &Services{
		Evaluations: service.NewEvaluationService(evalDeps, service.EvaluationOptions{
			Rules:          evaluation.Options{Precedence: evaluation.ParsePrecedence(cfg.Evaluation.Precedence)},
			LockTTL:        cfg.Evaluation.LockTTL.Duration,
			ArchiveOnClose: cfg.Evaluation.ArchiveOnClose,
		}, logger),
		Selection: service.NewSelectionService(deps.Accounts, deps.Selection, logger),
		Markets: service.NewMarketService(deps.Gamma, deps.MarketCache,
			cfg.Polymarket.MarketCacheTTL.Duration, cfg.Polymarket.MarketLimit, logger),
		Analytics:   service.NewAnalyticsService(deps.Data, deps.Gamma, deps.Profiles, logger),
		Leaderboard: service.NewLeaderboardService(deps.Leaderboard),
	}
}
