//go:build wireinject
// +build wireinject

package di

import (
	"SignalFeed/pkg/config"
	"SignalFeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePageCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideHistorySource,
		ProvidePushStream,
		ProvideSignalStorage,
		ProvideSignalPublisher,

		// Use cases
		ProvideSubscriptionTracker,
		ProvideFeed,
		ProvideSignalArchiver,
		ProvideSignalPipeline,
		ProvideFeedCollector,
		ProvideKafkaSignalsHandler,

		// HTTP
		ProvideFeedHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
