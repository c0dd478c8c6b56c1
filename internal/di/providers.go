package di

import (
	"context"
	"fmt"
	"time"

	drepo "TIKR/internal/domain/repository"
	"TIKR/internal/handler/api"
	"TIKR/internal/handler/ws"
	internalrepo "TIKR/internal/repository"
	"TIKR/internal/service/predictor"
	"TIKR/internal/usecase"
	pkgch "TIKR/pkg/clickhouse"
	"TIKR/pkg/config"
	pkgkafka "TIKR/pkg/kafka"
	applogger "TIKR/pkg/logger"
	"TIKR/pkg/metrics"
	"TIKR/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.NewPrometheus()
}

// ProvideDocumentStore creates the Redis-backed document store.
func ProvideDocumentStore(cfg *config.Config) (drepo.DocumentStore, error) {
	store, err := internalrepo.NewRedisStore(
		internalrepo.WithRedisAddr(cfg.Redis.Addr),
		internalrepo.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		internalrepo.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		internalrepo.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	return store, nil
}

// ProvideForecastClient creates the inference service client.
func ProvideForecastClient(cfg *config.Config, logger *applogger.Logger) drepo.ForecastClient {
	return predictor.New(
		cfg.Predictor.BaseURL,
		cfg.Predictor.Timeout,
		cfg.Predictor.MaxAttempts,
		logger,
	)
}

// ProvideHistoryStore creates the ClickHouse archive when history is enabled.
func ProvideHistoryStore(cfg *config.Config) (drepo.HistoryStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.HistorySchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	history := internalrepo.NewClickHouseHistory(client.DB(), cfg.ClickHouse.Database+".prediction_history")
	return history.WithCloser(client.Close), nil
}

// ProvideEventPublisher creates the Kafka publisher when events are enabled.
func ProvideEventPublisher(cfg *config.Config) (drepo.EventPublisher, error) {
	if !cfg.Events.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers),
		pkgkafka.WithCompression(cfg.Events.Compression),
		pkgkafka.WithRequiredAcks(cfg.Events.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Events.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Events.WriteTimeout, cfg.Events.ReadTimeout),
		pkgkafka.WithBatchSize(cfg.Events.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Events.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Events.Linger),
		pkgkafka.WithAsync(cfg.Events.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Events.Topic), nil
}

// ProvidePredictionManager creates the cache manager use case.
func ProvidePredictionManager(
	cfg *config.Config,
	store drepo.DocumentStore,
	fetcher drepo.ForecastClient,
	events drepo.EventPublisher,
	history drepo.HistoryStore,
	m drepo.Metrics,
	logger *applogger.Logger,
) *usecase.PredictionManager {
	opts := []usecase.ManagerOption{
		usecase.WithPolicy(cfg.Cache.Validity, cfg.Cache.StalenessHint),
		usecase.WithSessionSize(cfg.Cache.MemorySize),
	}
	if events != nil {
		opts = append(opts, usecase.WithEventPublisher(events))
	}
	if history != nil {
		opts = append(opts, usecase.WithHistory(history))
	}
	return usecase.NewPredictionManager(store, fetcher, m, logger, opts...)
}

// ProvideWatchlistManager creates the watchlist use case.
func ProvideWatchlistManager(store drepo.DocumentStore, logger *applogger.Logger) *usecase.WatchlistManager {
	return usecase.NewWatchlistManager(store, logger)
}

// ProvideHub creates the WebSocket broadcast hub when enabled.
func ProvideHub(cfg *config.Config, logger *applogger.Logger) *ws.Hub {
	if !cfg.WebSocket.Enabled {
		return nil
	}
	return ws.NewHub(logger, cfg.WebSocket.BufferSize)
}

// ProvideRefresher creates the background refresher when enabled.
func ProvideRefresher(
	cfg *config.Config,
	manager *usecase.PredictionManager,
	hub *ws.Hub,
	logger *applogger.Logger,
) *usecase.Refresher {
	if !cfg.Refresh.Enabled {
		return nil
	}
	var b usecase.Broadcaster
	if hub != nil {
		b = hub
	}
	return usecase.NewRefresher(manager, cfg.Refresh.Tickers, cfg.Refresh.Interval, b, logger)
}

// ProvideAPIHandler creates the Echo HTTP handler.
func ProvideAPIHandler(
	logger *applogger.Logger,
	manager *usecase.PredictionManager,
	watchlists *usecase.WatchlistManager,
	history drepo.HistoryStore,
) *api.PredictionsEchoHandler {
	return api.NewPredictionsEchoHandler(logger, manager, watchlists, history)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.PredictionsEchoHandler,
	hub *ws.Hub,
	refresher *usecase.Refresher,
	manager *usecase.PredictionManager,
	store drepo.DocumentStore,
	events drepo.EventPublisher,
	history drepo.HistoryStore,
) *server.App {
	return server.New(cfg, logger, handler, hub, refresher, manager, store, events, history)
}
