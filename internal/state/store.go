package state

import (
	"context"
	"errors"
	"time"
)

var ErrStoreClosed = errors.New("cooldown store is closed")

// Store records the last time a cooldown key fired.
type Store interface {
	// Claim stamps key with now unless it was stamped less than the store window ago.
	// It reports whether the caller won the claim.
	Claim(ctx context.Context, key string, now time.Time) (bool, error)
	Close() error
}

// Clock is the source of "now" for the gate.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
