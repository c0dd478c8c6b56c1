package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	xlogger "TIKR/pkg/logger"
)

const usersCollection = "users"

// ErrMissingUser is returned when a watchlist operation arrives without a
// user identifier. No implicit or anonymous account is ever substituted.
var ErrMissingUser = errors.New("watchlist: missing user id")

// WatchlistManager maintains per-user ticker watchlists with set semantics.
type WatchlistManager struct {
	store  drepo.DocumentStore
	logger *xlogger.Logger
	now    func() time.Time
}

// NewWatchlistManager creates the watchlist manager.
func NewWatchlistManager(store drepo.DocumentStore, logger *xlogger.Logger) *WatchlistManager {
	return &WatchlistManager{store: store, logger: logger, now: time.Now}
}

// Get returns the user's watchlist. An unknown user is not an error: the
// list is simply empty until the first add creates the account document.
func (w *WatchlistManager) Get(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	var acct models.UserAccount
	err := w.store.Get(ctx, usersCollection, userID, &acct)
	if err != nil {
		if errors.Is(err, drepo.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if acct.Watchlist == nil {
		return []string{}, nil
	}
	return acct.Watchlist, nil
}

// Toggle adds or removes a ticker. Both directions are idempotent: adding a
// present ticker and removing an absent one succeed without duplicating or
// erroring. Toggling for an unknown user creates the account document with a
// singleton watchlist.
func (w *WatchlistManager) Toggle(ctx context.Context, userID, ticker string, add bool) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("watchlist: empty ticker for user %s", userID)
	}

	var acct models.UserAccount
	err := w.store.Get(ctx, usersCollection, userID, &acct)
	if err != nil {
		if !errors.Is(err, drepo.ErrNotFound) {
			return nil, fmt.Errorf("load user %s: %w", userID, err)
		}
		if !add {
			// Nothing to remove, and removal never creates the account.
			return []string{}, nil
		}
		now := models.At(w.now())
		created := map[string]interface{}{
			"userId":     userID,
			"watchlist":  []string{ticker},
			"createdAt":  now,
			"modifiedAt": now,
		}
		if err := w.store.Merge(ctx, usersCollection, userID, created); err != nil {
			return nil, fmt.Errorf("create user %s: %w", userID, err)
		}
		w.logger.Info("watchlist created",
			xlogger.String("user", userID),
			xlogger.String("ticker", ticker),
		)
		return []string{ticker}, nil
	}

	list, changed := toggleTicker(acct.Watchlist, ticker, acct.HasTicker(ticker), add)
	if !changed {
		return list, nil
	}

	err = w.store.Merge(ctx, usersCollection, userID, map[string]interface{}{
		"watchlist":  list,
		"modifiedAt": models.At(w.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("update watchlist for %s: %w", userID, err)
	}
	return list, nil
}

// toggleTicker applies set semantics to the stored list and reports whether
// anything changed.
func toggleTicker(current []string, ticker string, present, add bool) ([]string, bool) {
	switch {
	case add && present:
		return current, false
	case add:
		return append(append([]string{}, current...), ticker), true
	case present:
		out := make([]string, 0, len(current))
		for _, t := range current {
			if t != ticker {
				out = append(out, t)
			}
		}
		return out, true
	default:
		return current, false
	}
}
