package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"TIKR/internal/domain/models"
	xlogger "TIKR/pkg/logger"
)

func serve(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, 2*time.Second, 3, xlogger.Nop()).(*Client)
	return srv, c
}

func jsonHandler(t *testing.T, payload string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}
}

func TestFetchFlattensNestedForecast(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "AAPL",
		"company_name": "Apple Inc",
		"current_price": 100,
		"predictions": [[104], [105], 106]
	}`))

	rec, err := c.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{104, 105, 106}
	if len(rec.RawPredictions) != len(want) {
		t.Fatalf("expected %d forecast values, got %v", len(want), rec.RawPredictions)
	}
	for i, v := range want {
		if rec.RawPredictions[i] != v {
			t.Fatalf("forecast[%d]: expected %v, got %v", i, v, rec.RawPredictions[i])
		}
	}
	if rec.PredictedPrice != 105 {
		t.Fatalf("expected predicted 105, got %v", rec.PredictedPrice)
	}
	if rec.Change != 5 {
		t.Fatalf("expected change 5, got %v", rec.Change)
	}
	if rec.Recommendation != models.RecommendationBuy {
		t.Fatalf("expected buy, got %s", rec.Recommendation)
	}
	if rec.Name != "Apple Inc" {
		t.Fatalf("expected company name, got %q", rec.Name)
	}
}

func TestFetchCoercesNonNumericToCurrentPrice(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "MSFT",
		"current_price": 100,
		"predictions": ["n/a", 110, "108.5"]
	}`))

	rec, err := c.Fetch(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The unusable element becomes the current price, never zero.
	want := []float64{100, 110, 108.5}
	for i, v := range want {
		if rec.RawPredictions[i] != v {
			t.Fatalf("forecast[%d]: expected %v, got %v", i, v, rec.RawPredictions[i])
		}
	}
	for _, v := range rec.RawPredictions {
		if v == 0 {
			t.Fatalf("coercion must never produce zero: %v", rec.RawPredictions)
		}
	}
}

func TestFetchSellWhenPredictedBelowCurrent(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "GME",
		"current_price": 100,
		"predictions": [95, 96, 94]
	}`))

	rec, err := c.Fetch(context.Background(), "GME")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Recommendation != models.RecommendationSell {
		t.Fatalf("expected sell, got %s", rec.Recommendation)
	}
	if rec.Change >= 0 {
		t.Fatalf("expected negative change, got %v", rec.Change)
	}
}

func TestFetchEmptyForecast(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "AAPL",
		"current_price": 100,
		"predictions": []
	}`))

	_, err := c.Fetch(context.Background(), "AAPL")
	if !errors.Is(err, ErrEmptyForecast) {
		t.Fatalf("expected ErrEmptyForecast, got %v", err)
	}
}

func TestFetchNoCurrentPrice(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "AAPL",
		"predictions": ["oops", "none"]
	}`))

	_, err := c.Fetch(context.Background(), "AAPL")
	if !errors.Is(err, ErrNoCurrentPrice) {
		t.Fatalf("expected ErrNoCurrentPrice, got %v", err)
	}
}

func TestFetchCurrentPriceFromStockData(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "AAPL",
		"stock_data": {"current_price": 50},
		"predictions": [51, 52]
	}`))

	rec, err := c.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CurrentPrice != 50 {
		t.Fatalf("expected current price 50 from stock_data, got %v", rec.CurrentPrice)
	}
}

func TestFetchNameFallsBackToTicker(t *testing.T) {
	_, c := serve(t, jsonHandler(t, `{
		"stock_ticker": "NVDA",
		"current_price": 100,
		"predictions": [101]
	}`))

	rec, err := c.Fetch(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Name != "NVDA" {
		t.Fatalf("expected ticker as name fallback, got %q", rec.Name)
	}
}

func TestFetchSurfacesUpstreamDetail(t *testing.T) {
	var calls atomic.Int32
	_, c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "ticker not found"}`))
	})

	_, err := c.Fetch(context.Background(), "NOPE")
	if err == nil || !strings.Contains(err.Error(), "ticker not found") {
		t.Fatalf("expected upstream detail in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		jsonHandler(t, `{
			"stock_ticker": "AAPL",
			"current_price": 100,
			"predictions": [105]
		}`)(w, r)
	})

	rec, err := c.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if rec.PredictedPrice != 105 {
		t.Fatalf("expected predicted 105, got %v", rec.PredictedPrice)
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	_, c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), "AAPL")
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestConfidenceBounds(t *testing.T) {
	tight := confidence([]float64{100, 100, 100})
	if tight != confidenceCeil {
		t.Fatalf("zero dispersion must hit the ceiling, got %v", tight)
	}

	wide := confidence([]float64{50, 100, 150})
	if wide != confidenceFloor {
		t.Fatalf("wide dispersion must hit the floor, got %v", wide)
	}

	mid := confidence([]float64{99, 100, 101})
	if mid <= confidenceFloor || mid >= confidenceCeil {
		t.Fatalf("moderate dispersion must land strictly between bounds, got %v", mid)
	}
	if narrower := confidence([]float64{99.9, 100, 100.1}); narrower <= mid {
		t.Fatalf("tighter forecasts must score higher: %v <= %v", narrower, mid)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.004, 1.0},
		{1.006, 1.01},
		{-2.345, -2.35},
		{100, 100},
	}
	for _, tc := range cases {
		if got := round2(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("round2(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
