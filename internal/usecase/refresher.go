package usecase

import (
	"context"
	"errors"
	"time"

	"TIKR/internal/domain/models"
	xlogger "TIKR/pkg/logger"
)

// Broadcaster pushes fresh records to connected live-update subscribers.
type Broadcaster interface {
	Broadcast(records []*models.PredictionRecord)
}

// Refresher keeps a configured ticker universe warm in the background. Each
// cycle is a non-forcing resolve: tickers whose cached record is still valid
// cost nothing, so the cycle interval can be well under the validity window.
type Refresher struct {
	manager  *PredictionManager
	tickers  []string
	interval time.Duration
	hub      Broadcaster
	logger   *xlogger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewRefresher creates a background refresher for the given tickers.
func NewRefresher(manager *PredictionManager, tickers []string, interval time.Duration, hub Broadcaster, logger *xlogger.Logger) *Refresher {
	return &Refresher{
		manager:  manager,
		tickers:  tickers,
		interval: interval,
		hub:      hub,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs refresh cycles until Stop is called. The first cycle runs
// immediately so a cold process warms up without waiting a full interval.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		r.cycle(ctx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.cycle(ctx)
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the refresh loop and waits for the in-flight cycle to finish.
func (r *Refresher) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Refresher) cycle(ctx context.Context) {
	if len(r.tickers) == 0 {
		return
	}
	if !r.manager.ShouldRefresh() {
		r.logger.Debug("refresh cycle skipped, records fresh")
		return
	}

	start := time.Now()
	records, err := r.manager.GetPredictions(ctx, r.tickers, false)
	if err != nil {
		if errors.Is(err, ErrAllFetchesFailed) {
			r.logger.Error("refresh cycle produced no records", xlogger.Error(err))
		} else {
			r.logger.Error("refresh cycle failed", xlogger.Error(err))
		}
		return
	}

	if r.hub != nil && len(records) > 0 {
		r.hub.Broadcast(records)
	}
	r.logger.Info("refresh cycle complete",
		xlogger.Int("tickers", len(r.tickers)),
		xlogger.Int("refreshed", len(records)),
		xlogger.Duration("took", time.Since(start)),
	)
}
