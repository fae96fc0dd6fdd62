package teamauth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

// A refresh token is single use even when it is presented by many callers at once.
func TestRefreshRaceHasOneWinner(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	reg := env.register(t, "alice@x.com")

	const callers = 16
	var (
		won    atomic.Int32
		winner atomic.Pointer[Tokens]
		g      errgroup.Group
	)
	for range callers {
		g.Go(func() error {
			tokens, err := env.engine.Refresh(context.Background(), reg.Tokens.RefreshToken)
			switch {
			case err == nil:
				won.Add(1)
				winner.Store(tokens)
				return nil
			case errors.Is(err, ErrInvalidRefreshToken):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if won.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", won.Load())
	}
	if got := env.sessionCount(t, reg.User.ID); got != 1 {
		t.Fatalf("expected one session after the race, got %d", got)
	}
	if _, err := env.engine.Refresh(context.Background(), winner.Load().RefreshToken); err != nil {
		t.Fatalf("the rotated token must stay usable: %v", err)
	}
}

// Logging out while refreshing must never leave a live session behind.
func TestRefreshRacingLogoutLeavesNoSession(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	reg := env.register(t, "bob@x.com")

	var g errgroup.Group
	g.Go(func() error {
		_, err := env.engine.Refresh(context.Background(), reg.Tokens.RefreshToken)
		if err != nil && !errors.Is(err, ErrInvalidRefreshToken) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		_, err := env.engine.LogoutAll(context.Background(), reg.User.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A refresh that committed first is wiped by LogoutAll. One that ran second finds
	// its session gone and creates nothing.
	if got := env.sessionCount(t, reg.User.ID); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}
