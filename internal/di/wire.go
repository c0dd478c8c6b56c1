//go:build wireinject
// +build wireinject

package di

import (
	"TIKR/pkg/config"
	"TIKR/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideDocumentStore,
		ProvideForecastClient,
		ProvideHistoryStore,
		ProvideEventPublisher,

		// Use cases
		ProvidePredictionManager,
		ProvideWatchlistManager,
		ProvideRefresher,

		// Transport
		ProvideAPIHandler,
		ProvideHub,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
