// Package loop serializes all session state mutation onto one goroutine.
// Blocking work runs elsewhere and hands its result back as a posted
// continuation, so state owners never need locks.
package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatcore/pkg/logger"

	"go.uber.org/zap"
)

// Timer is a cancellable pending callback. Stop must be called from the loop.
type Timer interface {
	Stop() bool
}

// Scheduler is what state owning components see of the loop.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// Go runs task off the loop. The returned continuation, if any, is
	// posted back and runs on the loop.
	Go(task func(ctx context.Context) func())
	// AfterFunc posts fn once d has elapsed unless the timer is stopped first.
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

// Loop is the real Scheduler: an unbounded FIFO drained by Run.
type Loop struct {
	log *logger.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	tasks  sync.WaitGroup

	tickInterval time.Duration
	tickMu       sync.Mutex
	tickHooks    map[int]func(now time.Time)
	nextHook     int

	onIdle func()
}

func New(log *logger.Logger, tickInterval time.Duration) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		log:          log,
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		tickInterval: tickInterval,
		tickHooks:    make(map[int]func(time.Time)),
	}
}

// OnIdle sets a hook that runs each time the queue drains after doing work.
// Set it before Run.
func (l *Loop) OnIdle(fn func()) {
	l.onIdle = fn
}

// OnTick registers a hook on the shared periodic tick and returns its remover.
func (l *Loop) OnTick(fn func(now time.Time)) func() {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	id := l.nextHook
	l.nextHook++
	l.tickHooks[id] = fn
	return func() {
		l.tickMu.Lock()
		defer l.tickMu.Unlock()
		delete(l.tickHooks, id)
	}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) Go(task func(ctx context.Context) func()) {
	l.tasks.Add(1)
	go func() {
		defer l.tasks.Done()
		cont := task(l.ctx)
		if cont != nil {
			l.Post(cont)
		}
	}()
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped {
				return
			}
			lt.stopped = true
			fn()
		})
	})
	return lt
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run executes posted work until ctx is cancelled. In-flight tasks see their
// context cancelled and their continuations are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.shutdown()

	var tick <-chan time.Time
	if l.tickInterval > 0 {
		t := time.NewTicker(l.tickInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		batch := l.take()
		if len(batch) > 0 {
			for _, fn := range batch {
				l.run(fn)
			}
			if l.onIdle != nil && l.empty() {
				l.run(l.onIdle)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		case now := <-tick:
			l.runTick(now)
		}
	}
}

func (l *Loop) runTick(now time.Time) {
	l.tickMu.Lock()
	hooks := make([]func(time.Time), 0, len(l.tickHooks))
	for _, fn := range l.tickHooks {
		hooks = append(hooks, fn)
	}
	l.tickMu.Unlock()

	for _, fn := range hooks {
		fn := fn
		l.run(func() { fn(now) })
	}
	if l.onIdle != nil && len(hooks) > 0 && l.empty() {
		l.run(l.onIdle)
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop task panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (l *Loop) shutdown() {
	l.cancel()
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	l.tasks.Wait()
}

type loopTimer struct {
	t       *time.Timer
	stopped bool
}

func (t *loopTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	t.t.Stop()
	return wasActive
}
