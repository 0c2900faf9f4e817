package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time stands still until Advance is called.
// Advance fires due callbacks one at a time in deadline order, and while a
// callback runs Now returns that callback's deadline. Callbacks may schedule,
// stop and reset timers but must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	pending  bool
}

var _ Clock = (*FakeClock)(nil)

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f, pending: true}
	c.waiters = append(c.waiters, waiter)
	return &fakeTimer{clock: c, waiter: waiter}
}

// Advance moves the clock forward by d, firing every callback whose deadline
// falls within the new time, including callbacks scheduled by earlier ones.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		waiter := c.nextDue(target)
		if waiter == nil {
			break
		}
		waiter.callback()
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextDue pops the earliest waiter due at or before target and moves the clock
// to its deadline.
func (c *FakeClock) nextDue(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	for i, waiter := range c.waiters {
		if waiter.deadline.After(target) {
			continue
		}
		if index < 0 || waiter.deadline.Before(c.waiters[index].deadline) {
			index = i
		}
	}
	if index < 0 {
		return nil
	}

	next := c.waiters[index]
	c.removeLocked(next)
	c.current = next.deadline
	return next
}

func (c *FakeClock) removeLocked(target *fakeWaiter) {
	target.pending = false
	for i, waiter := range c.waiters {
		if waiter == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// PendingCount returns the number of timers that have not fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := t.waiter.pending
	if wasPending {
		t.clock.removeLocked(t.waiter)
	}
	return wasPending
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := t.waiter.pending
	t.waiter.deadline = t.clock.current.Add(d)
	if !wasPending {
		t.waiter.pending = true
		t.clock.waiters = append(t.clock.waiters, t.waiter)
	}
	return wasPending
}
