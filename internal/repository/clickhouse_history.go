package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
)

// HistorySchema returns the idempotent statements that back the archive table.
func HistorySchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.prediction_history (
		ts DateTime64(3),
		ticker String,
		name String,
		current_price Float64,
		predicted_price Float64,
		change Float64,
		confidence Float64,
		recommendation String,
		raw_predictions String
	) ENGINE=MergeTree ORDER BY (ticker, ts)`, database),
	}
}

// ClickHouseHistory implements HistoryStore for ClickHouse. Each persisted
// prediction is appended as one immutable snapshot row.
type ClickHouseHistory struct {
	db     *sql.DB
	table  string
	closer func() error
}

var _ drepo.HistoryStore = (*ClickHouseHistory)(nil)

// NewClickHouseHistory creates ClickHouse history storage.
func NewClickHouseHistory(db *sql.DB, table string) *ClickHouseHistory {
	return &ClickHouseHistory{db: db, table: table}
}

// WithCloser attaches the function that releases the underlying client on Close.
func (h *ClickHouseHistory) WithCloser(fn func() error) *ClickHouseHistory {
	h.closer = fn
	return h
}

func (h *ClickHouseHistory) Append(ctx context.Context, rec *models.PredictionRecord) error {
	if rec == nil || rec.Ticker == "" {
		return fmt.Errorf("history append: empty record")
	}

	raw, err := json.Marshal(rec.RawPredictions)
	if err != nil {
		return fmt.Errorf("history append: encode forecast: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (ts, ticker, name, current_price, predicted_price, change, confidence, recommendation, raw_predictions) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", h.table)
	_, err = h.db.ExecContext(ctx, q,
		rec.LastUpdated.Time,
		rec.Ticker,
		rec.Name,
		rec.CurrentPrice,
		rec.PredictedPrice,
		rec.Change,
		rec.Confidence,
		string(rec.Recommendation),
		string(raw),
	)
	return err
}

func (h *ClickHouseHistory) Query(ctx context.Context, ticker string, limit int) ([]*models.PredictionRecord, error) {
	q := fmt.Sprintf("SELECT ts, ticker, name, current_price, predicted_price, change, confidence, recommendation, raw_predictions FROM %s WHERE ticker = ? ORDER BY ts DESC LIMIT ?", h.table)
	rows, err := h.db.QueryContext(ctx, q, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.PredictionRecord
	for rows.Next() {
		var (
			rec  models.PredictionRecord
			ts   time.Time
			reco string
			raw  string
		)
		if err := rows.Scan(&ts, &rec.Ticker, &rec.Name, &rec.CurrentPrice, &rec.PredictedPrice, &rec.Change, &rec.Confidence, &reco, &raw); err != nil {
			return nil, err
		}
		rec.LastUpdated = models.At(ts)
		rec.Recommendation = models.Recommendation(reco)
		if err := json.Unmarshal([]byte(raw), &rec.RawPredictions); err != nil {
			return nil, fmt.Errorf("history query: decode forecast: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func (h *ClickHouseHistory) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *ClickHouseHistory) Close() error {
	if h.closer != nil {
		return h.closer()
	}
	return nil
}
