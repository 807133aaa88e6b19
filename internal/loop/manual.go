package loop

import (
	"context"
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until the test
// drives it: RunNext, Drain and Advance.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    int
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// Go queues the task as one step; its continuation is queued behind
// whatever was posted meanwhile.
func (m *Manual) Go(task func(ctx context.Context) func()) {
	m.Post(func() {
		if cont := task(context.Background()); cont != nil {
			m.Post(cont)
		}
	})
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{at: m.now.Add(d), fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) Now() time.Time {
	return m.now
}

// Pending is the number of queued steps.
func (m *Manual) Pending() int {
	return len(m.queue)
}

// RunNext runs one queued step and reports whether there was one.
func (m *Manual) RunNext() bool {
	if len(m.queue) == 0 {
		return false
	}
	fn := m.queue[0]
	m.queue = m.queue[1:]
	fn()
	return true
}

// Drain runs queued steps until none remain.
func (m *Manual) Drain() {
	for m.RunNext() {
	}
}

// Advance moves the clock forward, firing due timers in order and draining
// after each.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		due := m.nextDue(target)
		if due == nil {
			break
		}
		if due.at.After(m.now) {
			m.now = due.at
		}
		due.stopped = true
		m.Post(due.fn)
		m.Drain()
	}
	m.now = target
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if !m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].at.Before(m.timers[j].at)
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at.After(target) {
		return nil
	}
	return m.timers[0]
}

type manualTimer struct {
	at      time.Time
	fn      func()
	seq     int
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
