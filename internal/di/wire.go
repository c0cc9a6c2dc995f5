//go:build wireinject
// +build wireinject

package di

import (
	"optionscan/pkg/config"
	"optionscan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Gateway and correlation engine
		ProvideGatewayClient,
		ProvideEngine,
		ProvideFetcher,

		// Infrastructure clients
		ProvideCacheService,
		ProvideClickHouseClient,

		// Repositories
		ProvideVolatilityStore,
		ProvideBenchmarkStore,
		ProvideSignalStore,
		ProvidePublisher,
		ProvideNotifier,

		// Domain services
		ProvideHistoryCache,
		ProvideFundamentalsCache,
		ProvideIVRank,
		ProvideChains,
		ProvidePortfolio,
		ProvidePipeline,

		// Use case and surface
		ProvideScanner,
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
