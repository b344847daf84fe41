package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmsengine/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var start = time.Date(2025, 6, 8, 14, 0, 0, 0, time.UTC)

func candidate(subject, kind string) *models.Candidate {
	return models.NewCandidate(models.SeverityCritical, kind, "msg", 205, 200,
		models.EquipmentDetails{EquipmentID: subject, LocationID: "4", Category: models.CategoryBoiler}, start)
}

func TestGateSuppressesWithinWindow(t *testing.T) {
	clock := &fakeClock{now: start}
	g := NewGate(NewMemoryStore(DefaultWindow, 100), WithGateClock(clock))
	ctx := context.Background()
	c := candidate("boiler-3", models.KindHighTemperature)

	assert.True(t, g.Allow(ctx, c))

	clock.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, g.Allow(ctx, c))

	clock.Advance(time.Second)
	assert.True(t, g.Allow(ctx, c), "window measured from the first fire, not the suppressed one")

	clock.Advance(time.Minute)
	assert.False(t, g.Allow(ctx, c))
}

func TestGateKeysBySubjectAndKind(t *testing.T) {
	g := NewGate(NewMemoryStore(DefaultWindow, 100))
	ctx := context.Background()

	assert.True(t, g.ShouldFire(ctx, candidate("boiler-3", models.KindHighTemperature), start))
	assert.True(t, g.ShouldFire(ctx, candidate("boiler-4", models.KindHighTemperature), start))
	assert.True(t, g.ShouldFire(ctx, candidate("boiler-3", models.KindEquipmentHealthLow), start))
	assert.False(t, g.ShouldFire(ctx, candidate("boiler-3", models.KindHighTemperature), start.Add(time.Minute)))
}

func TestGateConcurrentSingleWinner(t *testing.T) {
	g := NewGate(NewMemoryStore(DefaultWindow, 100))
	c := candidate("chiller-1", models.KindHighTemperature)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.ShouldFire(context.Background(), c, start) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestGateFailsOpen(t *testing.T) {
	store := NewMemoryStore(DefaultWindow, 100)
	require.NoError(t, store.Close())

	g := NewGate(store)
	c := candidate("pump-1", models.KindHighTemperature)
	assert.True(t, g.ShouldFire(context.Background(), c, start))
	assert.True(t, g.ShouldFire(context.Background(), c, start))
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore(time.Minute, 1000)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := s.Claim(ctx, fmt.Sprintf("k%d", i), start)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.Claim(ctx, "late", start.Add(30*time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11, s.Len())

	assert.Equal(t, 10, s.Sweep(start.Add(time.Minute)))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreIsBounded(t *testing.T) {
	s := NewMemoryStore(time.Hour, 64)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := s.Claim(ctx, fmt.Sprintf("equipment-%d_HIGH_TEMPERATURE", i), start.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, s.Len(), 64)

	ok, err := s.Claim(ctx, "equipment-999_HIGH_TEMPERATURE", start.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "newest entries survive eviction")
}

func TestRedisStoreWithoutWindow(t *testing.T) {
	// Nothing listens on port 1; a claim that reached redis would fail.
	s := NewRedisStore("127.0.0.1:1", "bmsengine:test:", 0)
	defer s.Close()

	for i := 0; i < 2; i++ {
		ok, err := s.Claim(context.Background(), "boiler-3_HIGH_TEMPERATURE", time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
	}

	m := NewMemoryStore(0, 10)
	defer m.Close()
	for i := 0; i < 2; i++ {
		ok, err := m.Claim(context.Background(), "boiler-3_HIGH_TEMPERATURE", time.Now())
		require.NoError(t, err)
		assert.True(t, ok, "the memory store agrees")
	}
}

func TestRedisStore(t *testing.T) {
	if os.Getenv("REDIS_TEST") != "1" {
		t.Skip("set REDIS_TEST=1 to run against a local redis")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	prefix := fmt.Sprintf("bmsengine:test:%d:", time.Now().UnixNano())
	s := NewRedisStore(addr, prefix, 500*time.Millisecond)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	ok, err := s.Claim(ctx, "boiler-3_HIGH_TEMPERATURE", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "boiler-3_HIGH_TEMPERATURE", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(600 * time.Millisecond)
	ok, err = s.Claim(ctx, "boiler-3_HIGH_TEMPERATURE", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}
