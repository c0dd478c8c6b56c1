package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	"TIKR/pkg/cache"
	xlogger "TIKR/pkg/logger"
)

const predictionsCollection = "predictions"

// ErrAllFetchesFailed is raised only when a non-empty request yields zero
// usable records. It is the single condition under which callers should show
// a blocking error state.
var ErrAllFetchesFailed = errors.New("predictions: all fetches failed")

// PredictionManager owns the policy for serving predictions: consult the
// shared cache, fall back to the remote inference service on miss or expiry,
// persist fresh results, and degrade gracefully when either side fails.
type PredictionManager struct {
	store   drepo.DocumentStore
	fetcher drepo.ForecastClient
	events  drepo.EventPublisher
	history drepo.HistoryStore
	metrics drepo.Metrics
	logger  *xlogger.Logger
	session *cache.Memory

	validity  time.Duration
	staleness time.Duration
	now       func() time.Time
}

// ManagerOption configures PredictionManager.
type ManagerOption func(*PredictionManager)

// WithEventPublisher wires an optional update-event publisher.
func WithEventPublisher(pub drepo.EventPublisher) ManagerOption {
	return func(m *PredictionManager) { m.events = pub }
}

// WithHistory wires an optional snapshot archive.
func WithHistory(h drepo.HistoryStore) ManagerOption {
	return func(m *PredictionManager) { m.history = h }
}

// WithPolicy overrides the cache validity window and the staleness hint.
func WithPolicy(validity, staleness time.Duration) ManagerOption {
	return func(m *PredictionManager) {
		if validity > 0 {
			m.validity = validity
		}
		if staleness > 0 {
			m.staleness = staleness
		}
	}
}

// WithSessionSize bounds the in-process record set.
func WithSessionSize(size int) ManagerOption {
	return func(m *PredictionManager) {
		if size > 0 {
			m.session = cache.NewMemory(cache.WithMaxSize(size))
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *PredictionManager) { m.now = now }
}

// NewPredictionManager creates the cache manager. The validity window and
// staleness hint are deliberately different thresholds: the 1h hint only
// nudges callers into a non-forcing resolve, which the 24h window still
// governs.
func NewPredictionManager(
	store drepo.DocumentStore,
	fetcher drepo.ForecastClient,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
	opts ...ManagerOption,
) *PredictionManager {
	m := &PredictionManager{
		store:     store,
		fetcher:   fetcher,
		metrics:   metrics,
		logger:    logger,
		session:   cache.NewMemory(),
		validity:  24 * time.Hour,
		staleness: time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetPredictions resolves records for the requested tickers. With
// forceRefresh the cache is skipped entirely; otherwise valid cached records
// are served and only misses or expired entries go remote. Per-ticker
// failures are isolated: a failing ticker is omitted, never fabricated.
func (m *PredictionManager) GetPredictions(ctx context.Context, tickers []string, forceRefresh bool) ([]*models.PredictionRecord, error) {
	requested := normalizeTickers(tickers)
	if len(requested) == 0 {
		return nil, nil
	}

	start := m.now()
	cached := make(map[string]*models.PredictionRecord)
	if !forceRefresh {
		cached = m.readCache(ctx, requested)
	}

	var toFetch []string
	for _, t := range requested {
		if _, ok := cached[t]; !ok {
			toFetch = append(toFetch, t)
		}
	}

	fetched := m.fetchAll(ctx, toFetch)

	results := make([]*models.PredictionRecord, 0, len(requested))
	for _, t := range requested {
		if rec, ok := cached[t]; ok {
			m.holdInSession(rec)
			results = append(results, rec)
			continue
		}
		if rec, ok := fetched[t]; ok {
			results = append(results, rec)
		}
	}

	m.metrics.RecordLatency("get_predictions", m.now().Sub(start).Seconds())

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %d of %d tickers unavailable", ErrAllFetchesFailed, len(requested), len(requested))
	}
	if missing := len(requested) - len(results); missing > 0 {
		m.logger.Warn("partial prediction result",
			xlogger.Int("requested", len(requested)),
			xlogger.Int("unavailable", missing),
		)
	}
	return results, nil
}

// readCache reads the shared cache for all tickers, isolating per-ticker
// failures. A permission failure on any read poisons the whole batch: the
// cache is treated as empty rather than partially trusted.
func (m *PredictionManager) readCache(ctx context.Context, tickers []string) map[string]*models.PredictionRecord {
	type readResult struct {
		ticker string
		rec    *models.PredictionRecord
		err    error
	}

	results := make(chan readResult, len(tickers))
	var wg sync.WaitGroup
	for _, t := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			var rec models.PredictionRecord
			err := m.store.Get(ctx, predictionsCollection, ticker, &rec)
			if err != nil {
				results <- readResult{ticker: ticker, err: err}
				return
			}
			results <- readResult{ticker: ticker, rec: &rec}
		}(t)
	}
	wg.Wait()
	close(results)

	now := m.now()
	hits := make(map[string]*models.PredictionRecord, len(tickers))
	for r := range results {
		switch {
		case r.err == nil:
			if r.rec.ValidAt(now, m.validity) {
				m.metrics.RecordCacheHit(r.ticker)
				hits[r.ticker] = r.rec
			} else {
				m.metrics.RecordCacheMiss(r.ticker)
			}
		case errors.Is(r.err, drepo.ErrPermissionDenied):
			m.metrics.RecordStoreError("permission")
			m.logger.Warn("cache read denied, falling back to remote for all tickers", xlogger.Error(r.err))
			return map[string]*models.PredictionRecord{}
		case errors.Is(r.err, drepo.ErrNotFound):
			m.metrics.RecordCacheMiss(r.ticker)
		default:
			m.metrics.RecordStoreError("read")
			m.logger.Warn("cache read failed",
				xlogger.String("ticker", r.ticker),
				xlogger.Error(r.err),
			)
		}
	}
	return hits
}

// fetchAll fetches tickers concurrently; one slow or failing ticker never
// blocks or fails the others. Successes are persisted before being returned,
// and the whole refreshed set goes out as one event batch.
func (m *PredictionManager) fetchAll(ctx context.Context, tickers []string) map[string]*models.PredictionRecord {
	if len(tickers) == 0 {
		return map[string]*models.PredictionRecord{}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		fetched = make(map[string]*models.PredictionRecord, len(tickers))
	)
	for _, t := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			rec, err := m.fetcher.Fetch(ctx, ticker)
			if err != nil {
				m.metrics.RecordFetchError(ticker)
				m.logger.Warn("remote fetch failed",
					xlogger.String("ticker", ticker),
					xlogger.Error(err),
				)
				return
			}
			m.Persist(ctx, rec)
			mu.Lock()
			fetched[ticker] = rec
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	m.publishRefreshed(ctx, tickers, fetched)
	return fetched
}

// publishRefreshed emits update events for the records a refresh produced,
// in request order. Publish failures are logged and swallowed; the fetched
// records are already usable.
func (m *PredictionManager) publishRefreshed(ctx context.Context, tickers []string, fetched map[string]*models.PredictionRecord) {
	if m.events == nil || len(fetched) == 0 {
		return
	}
	evs := make([]*models.PredictionEvent, 0, len(fetched))
	for _, t := range tickers {
		if rec, ok := fetched[t]; ok {
			evs = append(evs, models.EventFrom(rec))
		}
	}
	if err := m.events.Publish(ctx, evs...); err != nil {
		m.logger.Warn("event publish failed",
			xlogger.Int("events", len(evs)),
			xlogger.Error(err),
		)
	}
}

// Persist merge-writes the record keyed by ticker, assigns storedAt, and
// feeds the optional archive. Store failures are swallowed: the record stays
// usable in-memory for the session even if it was never cached. Returns
// whether the shared cache accepted the write.
func (m *PredictionManager) Persist(ctx context.Context, rec *models.PredictionRecord) bool {
	rec.StoredAt = models.At(m.now())
	m.holdInSession(rec)
	m.metrics.RecordPredictedPrice(rec.Ticker, rec.PredictedPrice)

	persisted := true
	err := m.store.Merge(ctx, predictionsCollection, rec.Ticker, map[string]interface{}{
		"ticker":         rec.Ticker,
		"name":           rec.Name,
		"currentPrice":   rec.CurrentPrice,
		"predictedPrice": rec.PredictedPrice,
		"change":         rec.Change,
		"confidence":     rec.Confidence,
		"recommendation": rec.Recommendation,
		"rawPredictions": rec.RawPredictions,
		"volume":         rec.Volume,
		"marketCap":      rec.MarketCap,
		"lastUpdated":    rec.LastUpdated,
		"storedAt":       rec.StoredAt,
	})
	if err != nil {
		persisted = false
		kind := "write"
		if errors.Is(err, drepo.ErrPermissionDenied) {
			kind = "permission"
		}
		m.metrics.RecordStoreError(kind)
		m.logger.Warn("prediction not cached, keeping in-memory only",
			xlogger.String("ticker", rec.Ticker),
			xlogger.Error(err),
		)
	}

	if m.history != nil {
		if err := m.history.Append(ctx, rec); err != nil {
			m.metrics.RecordStoreError("history")
			m.logger.Warn("history append failed",
				xlogger.String("ticker", rec.Ticker),
				xlogger.Error(err),
			)
		}
	}
	return persisted
}

// ShouldRefresh reports whether the session-held record set is stale enough
// to warrant a proactive, non-forcing resolve. It is a hint only; the cache
// validity window still decides whether anything actually goes remote.
func (m *PredictionManager) ShouldRefresh() bool {
	var oldest time.Time
	held := 0
	m.session.Range(func(_ string, value interface{}) {
		rec, ok := value.(*models.PredictionRecord)
		if !ok {
			return
		}
		held++
		if oldest.IsZero() || rec.LastUpdated.Before(oldest) {
			oldest = rec.LastUpdated.Time
		}
	})
	if held == 0 {
		return true
	}
	return m.now().Sub(oldest) > m.staleness
}

// Held returns the session-local copy of a record, if any. It serves reads
// within a session after a denied cache write.
func (m *PredictionManager) Held(ticker string) (*models.PredictionRecord, bool) {
	v, ok := m.session.Get(strings.ToUpper(strings.TrimSpace(ticker)))
	if !ok {
		return nil, false
	}
	rec, ok := v.(*models.PredictionRecord)
	return rec, ok
}

// Close releases the session cache.
func (m *PredictionManager) Close() error {
	return m.session.Close()
}

func (m *PredictionManager) holdInSession(rec *models.PredictionRecord) {
	m.session.Set(rec.Ticker, rec, m.validity)
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
