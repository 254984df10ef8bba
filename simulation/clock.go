package simulation

import (
	"sync"
	"time"
)

// TimeProvider supplies the clock's notion of now.
type TimeProvider interface {
	Now() time.Time
}

// WallTimeProvider provides the real system time with monotonic clock readings.
type WallTimeProvider struct{}

func (WallTimeProvider) Now() time.Time {
	return time.Now()
}

// MockTimeProvider provides a controllable time source for testing.
type MockTimeProvider struct {
	mu          sync.RWMutex
	currentTime time.Time
}

// NewMockTimeProvider creates a new mock time provider with the given start time.
func NewMockTimeProvider(startTime time.Time) *MockTimeProvider {
	return &MockTimeProvider{
		currentTime: startTime,
	}
}

// Now returns the current mocked time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTime
}

// Advance advances the current time by the given duration.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// Clock drives the engine with the wall-clock time elapsed since the previous
// tick, rather than a fixed step, so motion is real-time correct whatever tick
// rate is actually achieved.
type Clock struct {
	time   TimeProvider
	engine *Engine
	last   time.Time
	ticks  uint64
}

// NewClock returns a clock whose first tick measures from now.
func NewClock(engine *Engine, tp TimeProvider) *Clock {
	return &Clock{
		time:   tp,
		engine: engine,
		last:   tp.Now(),
	}
}

// Rebase discards the time accumulated since the last tick, e.g. after the host
// loop was not ticking for a while.
func (clock *Clock) Rebase() {
	clock.last = clock.time.Now()
}

// Tick measures dt, updates the engine if it is running and unpaused, and always
// returns a fresh snapshot. Paused ticks still consume their dt, so resuming does
// not replay the pause.
func (clock *Clock) Tick() Snapshot {
	now := clock.time.Now()
	dt := now.Sub(clock.last)
	clock.last = now
	clock.ticks++

	if clock.engine.Active() {
		clock.engine.Update(dt)
	}

	snap := clock.engine.Snapshot()
	snap.Tick = clock.ticks
	return snap
}
