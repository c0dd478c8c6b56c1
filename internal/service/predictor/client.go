package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	xhttp "TIKR/pkg/http"
	xlogger "TIKR/pkg/logger"
	"TIKR/pkg/retry"
)

var (
	// ErrEmptyForecast signals the upstream payload carried no forecast values.
	ErrEmptyForecast = errors.New("predictor: empty forecast sequence")
	// ErrNoCurrentPrice signals no current price could be resolved from the payload.
	ErrNoCurrentPrice = errors.New("predictor: no current price in payload")
)

const (
	confidenceFloor = 0.30
	confidenceCeil  = 0.95
	// Normalized dispersion at or above this maps to the confidence floor.
	dispersionSpan = 0.05
)

// Client calls the remote inference service and normalizes its payload into a
// PredictionRecord. It never persists anything; that is the caller's job.
type Client struct {
	baseURL string
	httpc   *xhttp.Client
	policy  retry.Policy
	logger  *xlogger.Logger
}

// New creates a forecast client.
func New(baseURL string, timeout time.Duration, maxAttempts int, logger *xlogger.Logger) drepo.ForecastClient {
	return &Client{
		baseURL: baseURL,
		httpc:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		policy: retry.Policy{
			MaxAttempts:     maxAttempts,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		logger: logger,
	}
}

type predictRequest struct {
	StockTicker string `json:"stock_ticker"`
}

type predictResponse struct {
	StockTicker  string            `json:"stock_ticker"`
	Predictions  []json.RawMessage `json:"predictions"`
	CurrentPrice *float64          `json:"current_price"`
	CompanyName  string            `json:"company_name"`
	Volume       *float64          `json:"volume"`
	MarketCap    *float64          `json:"market_cap"`
	StockData    *struct {
		CurrentPrice *float64 `json:"current_price"`
	} `json:"stock_data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Fetch calls POST /predict for one ticker and derives the record fields.
func (c *Client) Fetch(ctx context.Context, ticker string) (*models.PredictionRecord, error) {
	var body predictResponse
	op := func() error {
		resp, err := c.httpc.SendRequest(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    c.baseURL + "/predict",
			Body:   predictRequest{StockTicker: ticker},
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("predict %s: status %d%s", ticker, resp.StatusCode, detailSuffix(raw))
			// Client errors will not heal on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return retry.Permanent(fmt.Errorf("predict %s: decode body: %w", ticker, err))
		}
		return nil
	}

	if err := retry.Do(ctx, c.policy, op); err != nil {
		return nil, err
	}

	rec, err := normalize(ticker, &body)
	if err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("forecast fetched",
			xlogger.String("ticker", ticker),
			xlogger.Float64("predicted", rec.PredictedPrice),
			xlogger.Int("days", len(rec.RawPredictions)),
		)
	}
	return rec, nil
}

// detailSuffix surfaces the upstream "detail" string when the failure body has one.
func detailSuffix(raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Detail != "" {
		return ": " + er.Detail
	}
	return ""
}

// normalize turns the raw payload into a PredictionRecord, applying the
// flattening and coercion rules and deriving the computed fields.
func normalize(ticker string, body *predictResponse) (*models.PredictionRecord, error) {
	raw := flatten(body.Predictions)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyForecast, ticker)
	}

	currentPrice, ok := resolveCurrentPrice(body, raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCurrentPrice, ticker)
	}

	// Non-numeric forecast elements fall back to the current price, never to
	// zero: a zero would poison the mean and flip the recommendation.
	forecast := make([]float64, len(raw))
	for i, el := range raw {
		if v, ok := asNumber(el); ok {
			forecast[i] = v
		} else {
			forecast[i] = currentPrice
		}
	}

	predicted := round2(mean(forecast))
	change := round2((predicted - currentPrice) / currentPrice * 100)

	rec := &models.PredictionRecord{
		Ticker:         ticker,
		Name:           body.CompanyName,
		CurrentPrice:   currentPrice,
		PredictedPrice: predicted,
		Change:         change,
		Confidence:     confidence(forecast),
		Recommendation: models.RecommendationSell,
		RawPredictions: forecast,
		LastUpdated:    models.Now(),
	}
	if change > 0 {
		rec.Recommendation = models.RecommendationBuy
	}
	if rec.Name == "" {
		rec.Name = ticker
	}
	if body.Volume != nil {
		rec.Volume = *body.Volume
	}
	if body.MarketCap != nil {
		rec.MarketCap = *body.MarketCap
	}
	return rec, nil
}

// flatten unwraps one level of nesting: each element may be a scalar or a
// single-element sequence.
func flatten(elems []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(elems))
	for _, el := range elems {
		var nested []json.RawMessage
		if err := json.Unmarshal(el, &nested); err == nil {
			out = append(out, nested...)
			continue
		}
		out = append(out, el)
	}
	return out
}

func resolveCurrentPrice(body *predictResponse, raw []json.RawMessage) (float64, bool) {
	if body.CurrentPrice != nil && *body.CurrentPrice > 0 {
		return *body.CurrentPrice, true
	}
	if body.StockData != nil && body.StockData.CurrentPrice != nil && *body.StockData.CurrentPrice > 0 {
		return *body.StockData.CurrentPrice, true
	}
	// Last resort: the first usable forecast element stands in for the price.
	for _, el := range raw {
		if v, ok := asNumber(el); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

func asNumber(el json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(el, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(el, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// confidence maps normalized forecast dispersion onto [floor, ceil]: tight
// agreement scores high, a relative spread of dispersionSpan or more scores
// the floor.
func confidence(forecast []float64) float64 {
	m := mean(forecast)
	if m <= 0 {
		return confidenceFloor
	}
	norm := stddev(forecast) / m
	c := confidenceCeil - norm/dispersionSpan*(confidenceCeil-confidenceFloor)
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeil {
		return confidenceCeil
	}
	return c
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
