package clock_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/internal/clock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_FiresInDeadlineOrderAtDeadline(t *testing.T) {
	c := clock.Fake(epoch)
	var fired []time.Duration

	c.AfterFunc(3*time.Minute, func() { fired = append(fired, c.Now().Sub(epoch)) })
	c.AfterFunc(time.Minute, func() { fired = append(fired, c.Now().Sub(epoch)) })

	c.Advance(5 * time.Minute)

	require.Equal(t, []time.Duration{time.Minute, 3 * time.Minute}, fired)
	require.Equal(t, epoch.Add(5*time.Minute), c.Now())
	require.Zero(t, c.PendingCount())
}

func TestFake_RearmFromCallback(t *testing.T) {
	c := clock.Fake(epoch)
	var ticks []time.Duration

	var tick func()
	tick = func() {
		ticks = append(ticks, c.Now().Sub(epoch))
		c.AfterFunc(5*time.Minute, tick)
	}
	c.AfterFunc(5*time.Minute, tick)

	c.Advance(12 * time.Minute)

	require.Equal(t, []time.Duration{5 * time.Minute, 10 * time.Minute}, ticks)
	require.Equal(t, 1, c.PendingCount())
}

func TestFake_StopAndReset(t *testing.T) {
	c := clock.Fake(epoch)
	count := 0
	timer := c.AfterFunc(time.Minute, func() { count++ })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop())
	c.Advance(2 * time.Minute)
	require.Zero(t, count)

	require.False(t, timer.Reset(time.Minute))
	c.Advance(30 * time.Second)
	require.True(t, timer.Reset(time.Minute), "reset pushes the deadline out")
	c.Advance(45 * time.Second)
	require.Zero(t, count)
	c.Advance(15 * time.Second)
	require.Equal(t, 1, count)
}
