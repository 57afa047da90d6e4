package pubstatic

import (
	"fmt"
	"sync"
	"time"
)

// isoMillis is the ISO-8601 UTC layout with millisecond precision.
const isoMillis = "2006-01-02T15:04:05.000Z"

// buildClock hands out non-decreasing timestamps even if the wall clock is
// stepped backwards between calls.
type buildClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newBuildClock(now func() time.Time) *buildClock {
	if now == nil {
		now = time.Now
	}
	return &buildClock{now: now}
}

// Now returns the current time, never earlier than a previous call.
func (c *buildClock) Now() time.Time {
	t := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// Shortcodes is the set of named callables available to templates.
type Shortcodes struct {
	mu    sync.RWMutex
	funcs map[string]any
	order []string
}

// Add registers fn as name. fn must be a function usable from Go templates.
func (s *Shortcodes) Add(name string, fn any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.funcs == nil {
		s.funcs = make(map[string]any)
	}
	if _, ok := s.funcs[name]; ok {
		return fmt.Errorf("pubstatic: shortcode %q already registered", name)
	}
	s.funcs[name] = fn
	s.order = append(s.order, name)
	return nil
}

// Lookup returns the shortcode registered as name.
func (s *Shortcodes) Lookup(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.funcs[name]
	return fn, ok
}

func (s *Shortcodes) funcMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.funcs))
	for k, v := range s.funcs {
		out[k] = v
	}
	return out
}

// currentBuildDate is evaluated on every call; it is never cached.
func (c *buildClock) currentBuildDate() string {
	return c.Now().UTC().Format(isoMillis)
}
