package core

import (
	"context"
	"sync"
	"time"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/seed"
)

var testEpoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(entry string) {
	c.mu.Lock()
	c.calls = append(c.calls, entry)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}

type capturePublisher struct {
	events []Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, e Event) error {
	c.events = append(c.events, e)
	return c.err
}

// newTestService builds a service over the default baseline with a fixed
// clock shared by the store, the seed store and the service.
func newTestService(opts ...ServiceOption) *Service {
	clock := stubClock{t: testEpoch}
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(clock.Now))
	seeds := seed.NewStore(seed.WithClock(clock.Now))
	base := []ServiceOption{WithClock(clock), WithSeedStore(seeds)}
	return NewService(store, append(base, opts...)...)
}

func newEmptyService(opts ...ServiceOption) *Service {
	store := memory.NewStore(nil, memory.WithBaseline(nil))
	return NewService(store, opts...)
}
