package testutil

import (
	"fmt"
	"sync"
	"time"

	"tidy-go/internal/tidy"
)

// Reference is the instant FixedClock starts at: 2024-01-15 10:30:00 UTC.
var Reference = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a manually driven tidy.Clock. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to Reference.
func FixedClock() *StubClock {
	return NewStubClock(Reference)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Relative date conditions
// ("older than 30 days") are evaluated against the moved time.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out trash item IDs "id-1", "id-2", ...
type StubIDGenerator struct {
	mu sync.Mutex
	n  int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

var (
	_ tidy.Clock       = (*StubClock)(nil)
	_ tidy.IDGenerator = (*StubIDGenerator)(nil)
)
