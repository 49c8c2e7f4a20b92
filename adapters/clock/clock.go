// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/shapekit/ports"
)

// Func adapts a function to ports.Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }

// System reads the wall clock in UTC.
var System ports.Clock = Func(func() time.Time { return time.Now().UTC() })

// Stepping starts at a fixed time and advances by a fixed step on every
// call, giving tests distinct, ordered timestamps.
type Stepping struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepping creates a stepping clock.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{next: start, step: step}
}

// Now returns the current time and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.next
	s.next = s.next.Add(s.step)
	return now
}

var _ ports.Clock = (*Stepping)(nil)
