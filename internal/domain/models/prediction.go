package models

import "time"

// Recommendation is the derived buy/sell signal for a prediction.
type Recommendation string

const (
	RecommendationBuy  Recommendation = "buy"
	RecommendationSell Recommendation = "sell"
)

// PredictionRecord is one cached prediction, keyed by ticker.
type PredictionRecord struct {
	Ticker         string         `json:"ticker"`
	Name           string         `json:"name"`
	CurrentPrice   float64        `json:"currentPrice"`
	PredictedPrice float64        `json:"predictedPrice"`
	Change         float64        `json:"change"`
	Confidence     float64        `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	RawPredictions []float64      `json:"rawPredictions"`
	Volume         float64        `json:"volume,omitempty"`
	MarketCap      float64        `json:"marketCap,omitempty"`
	LastUpdated    Timestamp      `json:"lastUpdated"`
	StoredAt       Timestamp      `json:"storedAt"`
}

// ValidAt reports whether the record is fresh enough to serve without a refresh.
func (p *PredictionRecord) ValidAt(now time.Time, validity time.Duration) bool {
	if p.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(p.LastUpdated.Time) < validity
}

// PredictionEvent is the payload published when a prediction is refreshed.
type PredictionEvent struct {
	Ticker         string    `json:"ticker"`
	PredictedPrice float64   `json:"predictedPrice"`
	CurrentPrice   float64   `json:"currentPrice"`
	Change         float64   `json:"change"`
	Confidence     float64   `json:"confidence"`
	LastUpdated    Timestamp `json:"lastUpdated"`
}

// EventFrom builds the publish payload for a refreshed record.
func EventFrom(p *PredictionRecord) *PredictionEvent {
	return &PredictionEvent{
		Ticker:         p.Ticker,
		PredictedPrice: p.PredictedPrice,
		CurrentPrice:   p.CurrentPrice,
		Change:         p.Change,
		Confidence:     p.Confidence,
		LastUpdated:    p.LastUpdated,
	}
}
