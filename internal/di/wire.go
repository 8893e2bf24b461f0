//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinFactor/internal/usecase"
	"FinFactor/pkg/config"
	"FinFactor/pkg/server"
)

var analysisSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvidePostgres,
	ProvideCacheService,
	ProvideKafkaProducer,

	// Repositories
	ProvideDataProvider,
	ProvideResultStore,
	ProvideResultPublisher,

	// Domain services and use cases
	ProvideRegistry,
	ProvideFactorAnalysis,
)

// InitializeApp wires up all dependencies and returns the application with a
// cleanup that closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		analysisSet,
		ProvideKafkaConsumer,
		ProvideAnalysisRequestHandler,

		// Transport
		ProvideResponseCache,
		ProvideFactorsHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeAnalysis wires the analysis use case alone, for command line tools.
func InitializeAnalysis(cfg *config.Config) (*usecase.FactorAnalysis, func(), error) {
	wire.Build(analysisSet)
	return nil, nil, nil
}
