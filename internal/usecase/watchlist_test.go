package usecase

import (
	"context"
	"errors"
	"testing"

	xlogger "TIKR/pkg/logger"
)

func TestWatchlistMissingUser(t *testing.T) {
	w := NewWatchlistManager(newFakeStore(), xlogger.Nop())

	if _, err := w.Get(context.Background(), "  "); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser from Get, got %v", err)
	}
	if _, err := w.Toggle(context.Background(), "", "AAPL", true); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser from Toggle, got %v", err)
	}
}

func TestWatchlistUnknownUserIsEmpty(t *testing.T) {
	w := NewWatchlistManager(newFakeStore(), xlogger.Nop())

	got, err := w.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unknown user must not error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestWatchlistAddCreatesAccount(t *testing.T) {
	store := newFakeStore()
	w := NewWatchlistManager(store, xlogger.Nop())

	got, err := w.Toggle(context.Background(), "u1", "tsla", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "TSLA" {
		t.Fatalf("expected singleton [TSLA], got %v", got)
	}

	persisted, err := w.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != "TSLA" {
		t.Fatalf("expected persisted [TSLA], got %v", persisted)
	}
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	w := NewWatchlistManager(newFakeStore(), xlogger.Nop())
	ctx := context.Background()

	if _, err := w.Toggle(ctx, "u1", "TSLA", true); err != nil {
		t.Fatalf("first add: %v", err)
	}
	got, err := w.Toggle(ctx, "u1", "TSLA", true)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	count := 0
	for _, tk := range got {
		if tk == "TSLA" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected TSLA exactly once, got %v", got)
	}
}

func TestWatchlistRemoveAbsentIsNoop(t *testing.T) {
	w := NewWatchlistManager(newFakeStore(), xlogger.Nop())
	ctx := context.Background()

	if _, err := w.Toggle(ctx, "u1", "AAPL", true); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := w.Toggle(ctx, "u1", "MSFT", false)
	if err != nil {
		t.Fatalf("removing an absent ticker must succeed: %v", err)
	}
	if len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("expected [AAPL] unchanged, got %v", got)
	}
}

func TestWatchlistRemoveForUnknownUser(t *testing.T) {
	store := newFakeStore()
	w := NewWatchlistManager(store, xlogger.Nop())

	got, err := w.Toggle(context.Background(), "ghost", "AAPL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	if store.merges != 0 {
		t.Fatalf("removal must not create the account document")
	}
}

func TestWatchlistAddRemoveRoundTrip(t *testing.T) {
	w := NewWatchlistManager(newFakeStore(), xlogger.Nop())
	ctx := context.Background()

	for _, tk := range []string{"AAPL", "MSFT", "NVDA"} {
		if _, err := w.Toggle(ctx, "u1", tk, true); err != nil {
			t.Fatalf("add %s: %v", tk, err)
		}
	}
	got, err := w.Toggle(ctx, "u1", "MSFT", false)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "NVDA" {
		t.Fatalf("expected [AAPL NVDA], got %v", got)
	}
}
