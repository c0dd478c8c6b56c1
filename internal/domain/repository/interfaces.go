package repository

import (
	"context"
	"errors"

	"TIKR/internal/domain/models"
)

var (
	// ErrNotFound signals a missing document; it is not a transport failure.
	ErrNotFound = errors.New("store: document not found")
	// ErrPermissionDenied signals the store rejected the caller's credentials.
	ErrPermissionDenied = errors.New("store: permission denied")
)

// DocumentStore is a keyed-document read/write abstraction with partial-merge
// writes. Reads of missing keys return ErrNotFound; authorization failures
// return ErrPermissionDenied so callers can distinguish them from transport
// errors.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string, dest interface{}) error
	Merge(ctx context.Context, collection, key string, fields map[string]interface{}) error
	Health(ctx context.Context) error
	Close() error
}

// ForecastClient fetches and normalizes one prediction from the remote
// inference service. It has no persistence side effects.
type ForecastClient interface {
	Fetch(ctx context.Context, ticker string) (*models.PredictionRecord, error)
}

// EventPublisher publishes prediction-updated events for downstream consumers.
// All events from one refresh go out as a single batch.
type EventPublisher interface {
	Publish(ctx context.Context, evs ...*models.PredictionEvent) error
	Close() error
}

// HistoryStore archives every persisted prediction snapshot.
type HistoryStore interface {
	Append(ctx context.Context, rec *models.PredictionRecord) error
	Query(ctx context.Context, ticker string, limit int) ([]*models.PredictionRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the cache manager.
type Metrics interface {
	RecordCacheHit(ticker string)
	RecordCacheMiss(ticker string)
	RecordFetchError(ticker string)
	RecordStoreError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPredictedPrice(ticker string, price float64)
}
