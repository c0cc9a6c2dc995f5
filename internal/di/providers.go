package di

import (
	"context"
	"fmt"
	"time"

	"optionscan/internal/domain/repository"
	"optionscan/internal/handler/ops"
	"optionscan/internal/pipeline"
	internalrepo "optionscan/internal/repository"
	"optionscan/internal/service/chains"
	"optionscan/internal/service/corr"
	"optionscan/internal/service/fundvol"
	"optionscan/internal/service/gateway"
	"optionscan/internal/service/history"
	"optionscan/internal/service/marketdata"
	"optionscan/internal/service/notify"
	"optionscan/internal/service/portfolio"
	"optionscan/internal/usecase"
	"optionscan/pkg/cache"
	pkgch "optionscan/pkg/clickhouse"
	"optionscan/pkg/config"
	xhttp "optionscan/pkg/http"
	applogger "optionscan/pkg/logger"
	"optionscan/pkg/metrics"
	"optionscan/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideGatewayClient creates the broker gateway transport.
func ProvideGatewayClient(cfg *config.Config, l *applogger.Logger) *gateway.Client {
	return gateway.NewClient(&cfg.Gateway, l)
}

// ProvideEngine creates the request correlation engine and binds it to the
// gateway's event stream.
func ProvideEngine(gw *gateway.Client, l *applogger.Logger, m repository.Metrics, cfg *config.Config) *corr.Engine {
	engine := corr.NewEngine(gw, l, m, corr.BackoffConfig{
		BaseDelay:   cfg.Gateway.Reconnect.BaseDelay,
		MaxDelay:    cfg.Gateway.Reconnect.MaxDelay,
		MaxAttempts: cfg.Gateway.Reconnect.MaxAttempts,
	})
	gw.SetHandler(engine)
	return engine
}

// ProvideFetcher creates the rate-paced market data fetcher.
func ProvideFetcher(engine *corr.Engine, cfg *config.Config) *marketdata.Fetcher {
	return marketdata.NewFetcher(engine, cfg.Gateway.Timeouts, cfg.Scanner.RequestsPerSecond)
}

// ProvideCacheService creates the shared cache backend: Redis when enabled,
// in-process otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
}

// ProvideVolatilityStore creates the volatility observation store.
func ProvideVolatilityStore(c cache.Service) repository.VolatilityStore {
	return internalrepo.NewRedisVolatilityStore(c)
}

// ProvideBenchmarkStore creates the sector benchmark store.
func ProvideBenchmarkStore(c cache.Service) repository.BenchmarkStore {
	return internalrepo.NewRedisBenchmarkStore(c)
}

// ProvideHistoryCache creates the daily bar cache.
func ProvideHistoryCache(f *marketdata.Fetcher, l *applogger.Logger, cfg *config.Config) *history.Cache {
	maxAge := time.Duration(cfg.Scanner.HistoryMaxAgeDays) * 24 * time.Hour
	return history.NewCache(f, l, maxAge)
}

// ProvideFundamentalsCache creates the fundamentals cache.
func ProvideFundamentalsCache(f *marketdata.Fetcher, l *applogger.Logger, cfg *config.Config) *fundvol.FundamentalsCache {
	maxAge := time.Duration(cfg.Scanner.FundamentalsMaxAgeDays) * 24 * time.Hour
	return fundvol.NewFundamentalsCache(f, l, maxAge)
}

// ProvideIVRank creates the IV rank service.
func ProvideIVRank(store repository.VolatilityStore, l *applogger.Logger) *fundvol.IVRankService {
	return fundvol.NewIVRankService(store, l)
}

// ProvideChains creates the option chain service.
func ProvideChains(f *marketdata.Fetcher, l *applogger.Logger, cfg *config.Config) *chains.Service {
	return chains.NewService(f, l, cfg.Scanner.ChainMaxAge)
}

// ProvidePortfolio creates the portfolio snapshot provider.
func ProvidePortfolio(f *marketdata.Fetcher, l *applogger.Logger, cfg *config.Config) *portfolio.Provider {
	return portfolio.NewProvider(f, l, cfg.Risk.SnapshotMaxAge, cfg.Risk.CriticalCushion)
}

// ProvidePipeline creates the screening pipeline.
func ProvidePipeline(
	ch *chains.Service,
	risk *portfolio.Provider,
	l *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *pipeline.Pipeline {
	return pipeline.New(ch, risk, l, m, pipeline.Config{
		MinMarketCap:           cfg.Universe.MinMarketCap,
		MinAvgVolume:           cfg.Universe.MinAvgVolume,
		EarningsBlackoutBefore: cfg.Risk.EarningsBlackoutBefore,
		EarningsBlackoutAfter:  cfg.Risk.EarningsBlackoutAfter,
		CommissionPerOrder:     cfg.Risk.CommissionPerOrder,
	})
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when
// persistence is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the signal store and runs its schema DDL.
// Returns nil when ClickHouse is disabled.
func ProvideSignalStore(client *pkgch.Client, l *applogger.Logger) (repository.SignalStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSignalStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePublisher creates the Kafka signal publisher, or nil when disabled.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	pub, err := internalrepo.NewKafkaPublisher(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// ProvideNotifier creates the push notifier, or nil when no credentials are
// configured.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger) repository.Notifier {
	n := notify.NewPushoverNotifier(cfg.Pushover, l)
	if !n.Enabled() {
		return nil
	}
	return n
}

// ProvideScanner creates the scan loop use case.
func ProvideScanner(
	cfg *config.Config,
	hist *history.Cache,
	funds *fundvol.FundamentalsCache,
	vol *fundvol.IVRankService,
	snapshots *portfolio.Provider,
	eval *pipeline.Pipeline,
	store repository.SignalStore,
	bench repository.BenchmarkStore,
	notifier repository.Notifier,
	publisher repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Scanner {
	return usecase.NewScanner(
		cfg.Scanner,
		hist,
		funds,
		vol,
		snapshots,
		eval,
		pipeline.DefaultVariants(),
		store,
		bench,
		notifier,
		publisher,
		m,
		l,
	)
}

// ProvideOpsHandler creates the health/readiness HTTP handler.
func ProvideOpsHandler(engine *corr.Engine, store repository.SignalStore) xhttp.Handler {
	return ops.NewHandler(engine, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	gw *gateway.Client,
	engine *corr.Engine,
	scanner *usecase.Scanner,
	l *applogger.Logger,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	publisher repository.Publisher,
) *server.App {
	app := server.New(cfg, gw, engine, scanner, l)
	app.SetHTTPHandler(handler)
	app.SetClickHouse(chClient)
	app.SetPublisher(publisher)
	return app
}
