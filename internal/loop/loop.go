// Package loop provides the cooperative executor the whole kernel runs
// on. Every state transition happens inside a task executed by a single
// goroutine; IPC readers, signal relays, and expiring timers hand work
// over with Post instead of touching state themselves.
package loop

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"
)

// Loop is an unbounded FIFO task queue drained by one goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn for execution on the loop goroutine. Safe from any
// goroutine and never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	q := l.queue
	l.queue = nil
	l.mu.Unlock()
	return q
}

// Run executes tasks until ctx is cancelled, then drains what is already
// queued and returns. Tasks run to completion in post order.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for _, fn := range l.take() {
			fn()
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			for _, fn := range l.take() {
				fn()
			}
			return nil
		}
	}
}

// Flush runs everything queued so far on the calling goroutine. Only
// valid while Run is not executing: startup sequencing and tests.
func (l *Loop) Flush() {
	for {
		q := l.take()
		if len(q) == 0 {
			return
		}
		for _, fn := range q {
			fn()
		}
	}
}

// OnSignal relays an OS signal into a loop task. The returned stop
// function detaches the relay.
func (l *Loop) OnSignal(fn func(), sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)
	go func() {
		for range ch {
			l.Post(fn)
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// Timer is a single-shot cooperative timer. Its callback always runs as
// a loop task, and Arm/Disarm must themselves be called on the loop, so
// a timer observed disarmed cannot fire later: the generation counter
// invalidates in-flight expirations.
type Timer struct {
	loop  *Loop
	fn    func()
	gen   uint64
	inner *time.Timer
	armed bool
}

// NewTimer creates a disarmed timer. The callback is fixed for the
// timer's lifetime.
func (l *Loop) NewTimer(fn func()) *Timer {
	return &Timer{loop: l, fn: fn}
}

// Arm schedules the timer, replacing any earlier schedule.
func (t *Timer) Arm(d time.Duration) {
	t.gen++
	t.armed = true
	gen := t.gen
	if t.inner != nil {
		t.inner.Stop()
	}
	t.inner = time.AfterFunc(d, func() {
		t.loop.Post(func() {
			if t.gen != gen || !t.armed {
				return
			}
			t.armed = false
			t.fn()
		})
	})
}

// Disarm cancels any pending expiration.
func (t *Timer) Disarm() {
	t.gen++
	t.armed = false
	if t.inner != nil {
		t.inner.Stop()
	}
}

func (t *Timer) Armed() bool { return t.armed }
