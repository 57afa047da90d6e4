package pubstatic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNow returns the given times in order and repeats the last one.
func fakeNow(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	i := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[min(i, len(times)-1)]
		i++
		return t
	}
}

func TestCurrentBuildDateFormat(t *testing.T) {
	c := newBuildClock(fakeNow(time.Date(2024, 3, 5, 14, 7, 9, 123456789, time.FixedZone("CET", 3600))))
	assert.Equal(t, "2024-03-05T13:07:09.123Z", c.currentBuildDate())
}

func TestCurrentBuildDateIsEvaluatedPerCall(t *testing.T) {
	t0 := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	c := newBuildClock(fakeNow(t0, t0.Add(time.Second)))

	first := c.currentBuildDate()
	second := c.currentBuildDate()
	assert.Equal(t, "2024-03-05T12:00:00.000Z", first)
	assert.Equal(t, "2024-03-05T12:00:01.000Z", second)
}

func TestBuildClockNeverGoesBackwards(t *testing.T) {
	t0 := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	c := newBuildClock(fakeNow(t0, t0.Add(-time.Hour), t0.Add(time.Minute)))

	a := c.Now()
	b := c.Now()
	d := c.Now()
	assert.Equal(t, t0, a)
	assert.Equal(t, t0, b, "stepped back clock must not go below the previous value")
	assert.Equal(t, t0.Add(time.Minute), d)
}

func TestShortcodesRegistry(t *testing.T) {
	var s Shortcodes
	require.NoError(t, s.Add("year", func() string { return "2024" }))
	assert.Error(t, s.Add("year", func() string { return "2025" }))

	fn, ok := s.Lookup("year")
	require.True(t, ok)
	assert.Equal(t, "2024", fn.(func() string)())

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
	assert.Len(t, s.funcMap(), 1)
}
