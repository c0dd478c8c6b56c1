package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	xlogger "TIKR/pkg/logger"
)

type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]json.RawMessage
	getErr map[string]error
	merge  error
	gets   int
	merges int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   make(map[string]map[string]json.RawMessage),
		getErr: make(map[string]error),
	}
}

func (s *fakeStore) docKey(collection, key string) string {
	return collection + "/" + key
}

func (s *fakeStore) Get(_ context.Context, collection, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	dk := s.docKey(collection, key)
	if err, ok := s.getErr[dk]; ok {
		return err
	}
	fields, ok := s.docs[dk]
	if !ok {
		return drepo.ErrNotFound
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *fakeStore) Merge(_ context.Context, collection, key string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merges++
	if s.merge != nil {
		return s.merge
	}
	dk := s.docKey(collection, key)
	if _, ok := s.docs[dk]; !ok {
		s.docs[dk] = make(map[string]json.RawMessage)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		s.docs[dk][k] = raw
	}
	return nil
}

func (s *fakeStore) Health(_ context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }

func (s *fakeStore) seed(t *testing.T, collection, key string, doc interface{}) {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("seed marshal: %v", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("seed unmarshal: %v", err)
	}
	s.mu.Lock()
	s.docs[s.docKey(collection, key)] = fields
	s.mu.Unlock()
}

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]*models.PredictionRecord
	errs    map[string]error
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: make(map[string]*models.PredictionRecord),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, ticker string) (*models.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	if rec, ok := f.records[ticker]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, fmt.Errorf("no forecast for %s", ticker)
}

func (f *fakeFetcher) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

type fakeMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	fetchErrs int
	storeErrs map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{storeErrs: make(map[string]int)}
}

func (m *fakeMetrics) RecordCacheHit(string)  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *fakeMetrics) RecordCacheMiss(string) { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *fakeMetrics) RecordFetchError(string) {
	m.mu.Lock()
	m.fetchErrs++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordStoreError(kind string) {
	m.mu.Lock()
	m.storeErrs[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64)        {}
func (m *fakeMetrics) RecordPredictedPrice(string, float64) {}

func record(ticker string, updated time.Time) *models.PredictionRecord {
	return &models.PredictionRecord{
		Ticker:         ticker,
		Name:           ticker + " Inc",
		CurrentPrice:   100,
		PredictedPrice: 105,
		Change:         5,
		Confidence:     0.9,
		Recommendation: models.RecommendationBuy,
		RawPredictions: []float64{104, 105, 106},
		LastUpdated:    models.At(updated),
	}
}

func newManager(store *fakeStore, fetcher *fakeFetcher, metrics *fakeMetrics, opts ...ManagerOption) *PredictionManager {
	return NewPredictionManager(store, fetcher, metrics, xlogger.Nop(), opts...)
}

func TestGetPredictionsServesValidCache(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.seed(t, predictionsCollection, "AAPL", record("AAPL", now.Add(-2*time.Hour)))
	fetcher := newFakeFetcher()
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Fatalf("expected cached AAPL record, got %+v", got)
	}
	if fetcher.callCount("AAPL") != 0 {
		t.Fatalf("expected no remote fetch for valid cache, got %d", fetcher.callCount("AAPL"))
	}
}

func TestGetPredictionsExpiredTriggersFetch(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.seed(t, predictionsCollection, "AAPL", record("AAPL", now.Add(-25*time.Hour)))
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", now)
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.callCount("AAPL") != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetcher.callCount("AAPL"))
	}
	if len(got) != 1 || !got[0].StoredAt.After(now.Add(-time.Minute)) {
		t.Fatalf("expected freshly stored record, got %+v", got)
	}
	if store.merges == 0 {
		t.Fatalf("expected fetched record to be persisted")
	}
}

func TestGetPredictionsForceSkipsCache(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.seed(t, predictionsCollection, "AAPL", record("AAPL", now.Add(-time.Minute)))
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", now)
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	if _, err := m.GetPredictions(context.Background(), []string{"AAPL"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.callCount("AAPL") != 1 {
		t.Fatalf("expected force refresh to fetch, got %d calls", fetcher.callCount("AAPL"))
	}
}

func TestGetPredictionsPermissionDeniedDisablesCacheRead(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.seed(t, predictionsCollection, "AAPL", record("AAPL", now.Add(-time.Minute)))
	store.seed(t, predictionsCollection, "MSFT", record("MSFT", now.Add(-time.Minute)))
	store.getErr[store.docKey(predictionsCollection, "MSFT")] = drepo.ErrPermissionDenied
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", now)
	fetcher.records["MSFT"] = record("MSFT", now)
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"AAPL", "MSFT"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both tickers via remote, got %d", len(got))
	}
	// The valid AAPL document must not be trusted once any read is denied.
	if fetcher.callCount("AAPL") != 1 || fetcher.callCount("MSFT") != 1 {
		t.Fatalf("expected remote fetch for all tickers, got AAPL=%d MSFT=%d",
			fetcher.callCount("AAPL"), fetcher.callCount("MSFT"))
	}
}

func TestGetPredictionsPartialFailure(t *testing.T) {
	store := newFakeStore()
	fetcher := newFakeFetcher()
	fetcher.records["MSFT"] = record("MSFT", time.Now())
	fetcher.errs["AAPL"] = errors.New("inference timeout")
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"AAPL", "MSFT"}, false)
	if err != nil {
		t.Fatalf("partial failure must not error: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "MSFT" {
		t.Fatalf("expected only MSFT, got %+v", got)
	}
}

func TestGetPredictionsAllFail(t *testing.T) {
	store := newFakeStore()
	fetcher := newFakeFetcher()
	fetcher.errs["AAPL"] = errors.New("down")
	fetcher.errs["MSFT"] = errors.New("down")
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	_, err := m.GetPredictions(context.Background(), []string{"AAPL", "MSFT"}, false)
	if !errors.Is(err, ErrAllFetchesFailed) {
		t.Fatalf("expected ErrAllFetchesFailed, got %v", err)
	}
}

func TestGetPredictionsEmptyInput(t *testing.T) {
	m := newManager(newFakeStore(), newFakeFetcher(), newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), nil, false)
	if err != nil || got != nil {
		t.Fatalf("empty input should be a no-op, got %v / %v", got, err)
	}
}

func TestGetPredictionsNormalizesAndDeduplicates(t *testing.T) {
	store := newFakeStore()
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", time.Now())
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{" aapl ", "AAPL", ""}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || fetcher.callCount("AAPL") != 1 {
		t.Fatalf("expected single deduplicated fetch, got %d records, %d calls",
			len(got), fetcher.callCount("AAPL"))
	}
}

func TestPersistSwallowsPermissionDenied(t *testing.T) {
	store := newFakeStore()
	store.merge = drepo.ErrPermissionDenied
	metrics := newFakeMetrics()
	m := newManager(store, newFakeFetcher(), metrics)
	defer m.Close()

	rec := record("AAPL", time.Now())
	if persisted := m.Persist(context.Background(), rec); persisted {
		t.Fatalf("persist should report the denied write")
	}
	if metrics.storeErrs["permission"] != 1 {
		t.Fatalf("expected a permission store error, got %v", metrics.storeErrs)
	}
	held, ok := m.Held("AAPL")
	if !ok || held.Ticker != "AAPL" {
		t.Fatalf("record must stay readable in-session after denied write")
	}
}

func TestFetchedRecordServedAfterDeniedWrite(t *testing.T) {
	store := newFakeStore()
	store.merge = drepo.ErrPermissionDenied
	fetcher := newFakeFetcher()
	fetcher.records["TSLA"] = record("TSLA", time.Now())
	m := newManager(store, fetcher, newFakeMetrics())
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"TSLA"}, false)
	if err != nil {
		t.Fatalf("denied write must not fail the request: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "TSLA" {
		t.Fatalf("expected TSLA despite denied write, got %+v", got)
	}
}

func TestShouldRefresh(t *testing.T) {
	now := time.Now()
	m := newManager(newFakeStore(), newFakeFetcher(), newFakeMetrics())
	defer m.Close()

	if !m.ShouldRefresh() {
		t.Fatalf("empty session must request a refresh")
	}

	m.holdInSession(record("AAPL", now.Add(-5*time.Minute)))
	if m.ShouldRefresh() {
		t.Fatalf("fresh records must not request a refresh")
	}

	m.holdInSession(record("MSFT", now.Add(-2*time.Hour)))
	if !m.ShouldRefresh() {
		t.Fatalf("a record past the staleness hint must request a refresh")
	}
}

type fakeEvents struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (e *fakeEvents) Publish(_ context.Context, evs ...*models.PredictionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	tickers := make([]string, 0, len(evs))
	for _, ev := range evs {
		tickers = append(tickers, ev.Ticker)
	}
	e.batches = append(e.batches, tickers)
	return nil
}

func (e *fakeEvents) Close() error { return nil }

func TestGetPredictionsPublishesOneEventBatch(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.seed(t, predictionsCollection, "NVDA", record("NVDA", now.Add(-time.Hour)))
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", now)
	fetcher.records["MSFT"] = record("MSFT", now)
	events := &fakeEvents{}
	m := newManager(store, fetcher, newFakeMetrics(), WithEventPublisher(events))
	defer m.Close()

	if _, err := m.GetPredictions(context.Background(), []string{"NVDA", "AAPL", "MSFT"}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.batches) != 1 {
		t.Fatalf("expected one event batch, got %d", len(events.batches))
	}
	batch := events.batches[0]
	if len(batch) != 2 || batch[0] != "AAPL" || batch[1] != "MSFT" {
		t.Fatalf("expected only the fetched tickers, in request order, got %v", batch)
	}
}

func TestGetPredictionsSwallowsEventPublishFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.records["AAPL"] = record("AAPL", time.Now())
	events := &fakeEvents{err: errors.New("broker unavailable")}
	m := newManager(newFakeStore(), fetcher, newFakeMetrics(), WithEventPublisher(events))
	defer m.Close()

	got, err := m.GetPredictions(context.Background(), []string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Fatalf("expected AAPL despite publish failure, got %+v", got)
	}
}
