package state

import (
	"context"
	"time"

	"bmsengine/internal/logger"
	"bmsengine/internal/models"
)

// DefaultWindow is how long a subject and kind stay quiet after firing.
const DefaultWindow = 5 * time.Minute

// Gate suppresses repeats of the same alert for the same subject within the store window.
// A candidate that passes is stamped at once, so cooldown starts at generation time
// whether or not any notification is later delivered.
type Gate struct {
	store Store
	clock Clock
}

type GateOption func(*Gate)

func WithGateClock(c Clock) GateOption {
	return func(g *Gate) { g.clock = c }
}

// NewGate wraps a store. A nil store gets an in-memory one with the default window.
func NewGate(store Store, opts ...GateOption) *Gate {
	if store == nil {
		store = NewMemoryStore(DefaultWindow, 10000)
	}
	g := &Gate{store: store, clock: SystemClock{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow is ShouldFire at the gate clock's now.
func (g *Gate) Allow(ctx context.Context, c *models.Candidate) bool {
	return g.ShouldFire(ctx, c, g.clock.Now())
}

// ShouldFire reports whether c may proceed and, if so, records it. Store failures let the
// candidate through.
func (g *Gate) ShouldFire(ctx context.Context, c *models.Candidate, now time.Time) bool {
	ok, err := g.store.Claim(ctx, c.CooldownKey(), now)
	if err != nil {
		log := logger.WithComponent("cooldown")
		log.Warn().
			Err(err).
			Str("key", c.CooldownKey()).
			Msg("Cooldown store unavailable, allowing alert")
		return true
	}
	return ok
}

func (g *Gate) Close() error {
	return g.store.Close()
}
