package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis failure. Callers treat it as a denial.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Window is a fixed-window budget of Max hits per Period. A zero Max or Period turns
// the window off.
type Window struct {
	Max    int
	Period time.Duration
}

func (w Window) enabled() bool {
	return w.Max > 0 && w.Period > 0
}

// hit counts one event against key and fails once the count passes Max.
//
// The counter is created with its expiry by SET NX in the same MULTI as the INCR, so a
// window always ends Period after its first hit and a crash between the two commands
// cannot leave an immortal key.
func hit(ctx context.Context, rdb redis.UniversalClient, key string, w Window) error {
	if !w.enabled() {
		return nil
	}

	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, w.Period)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	if incr.Val() > int64(w.Max) {
		return ErrRateLimited
	}
	return nil
}

// peek fails if key has already used its budget, without counting.
func peek(ctx context.Context, rdb redis.UniversalClient, key string, w Window) error {
	if !w.enabled() {
		return nil
	}
	count, err := rdb.Get(ctx, key).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return unavailable(err)
	case count >= int64(w.Max):
		return ErrRateLimited
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
