// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"cmp"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"

	"github.com/loomkit/loom/internal/state"
)

// Loop is the single cooperative run loop of a [Runtime]. Continuations
// submitted with [Loop.Post] and fired timers execute one at a time on the
// goroutine that called [Runtime.Run], in submission order. Because nothing
// on the loop ever runs concurrently with anything else on the loop, state
// touched only from loop continuations needs no synchronization.
//
// The loop is not preemptive. A continuation that blocks or spins starves
// every other continuation and timer; work of that shape belongs on the
// worker pool.
type Loop struct {
	token   Token
	baseCtx context.Context

	mu     sync.Mutex
	queue  deque.Deque[func()]
	timers heap.Heap[timerEntry, heap.Min]
	seq    uint64
	closed bool
	depth  state.Gauge

	wake chan struct{}
}

type timerEntry struct {
	when time.Time
	seq  uint64
	fn   func()
}

func (a *timerEntry) Cmp(b *timerEntry) int {
	if c := a.when.Compare(b.when); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func newLoop(baseCtx context.Context) *Loop {
	l := &Loop{
		baseCtx: baseCtx,
		wake:    make(chan struct{}, 1),
	}
	l.token = newToken(AffinityLoop, l)
	return l
}

// Token returns the loop's token. It compares equal to the token returned by
// [LoopContext.Token] inside any continuation running on this loop.
func (l *Loop) Token() Token {
	return l.token
}

// Post schedules fn to run on the loop. It is safe to call from any
// goroutine, including from continuations already running on the loop, and
// never runs fn inline. Returns [ErrContextUnavailable] once the runtime has
// shut down.
func (l *Loop) Post(fn func(*LoopContext)) error {
	if fn == nil {
		panic("continuation must be non-nil")
	}
	return l.enqueue(func() {
		fn(l.capability())
	})
}

// After schedules fn to run on the loop once d has elapsed. The returned
// cancel function prevents a firing that has not yet happened; it does not
// interrupt fn once started.
func (l *Loop) After(d time.Duration, fn func(*LoopContext)) (cancel func(), err error) {
	if fn == nil {
		panic("timer function must be non-nil")
	}
	var stopped atomic.Bool
	err = l.schedule(time.Now().Add(d), func() {
		if stopped.Load() {
			return
		}
		fn(l.capability())
	})
	if err != nil {
		return nil, err
	}
	return func() { stopped.Store(true) }, nil
}

// Every schedules fn to run on the loop once per interval d until the
// returned cancel function is called or the runtime shuts down. The next
// firing is scheduled after fn returns, so a slow fn lowers the effective
// rate rather than letting firings pile up behind it.
func (l *Loop) Every(d time.Duration, fn func(*LoopContext)) (cancel func(), err error) {
	if fn == nil {
		panic("tick function must be non-nil")
	}
	if d <= 0 {
		panic("tick interval must be positive")
	}
	var stopped atomic.Bool
	var tick func()
	tick = func() {
		if stopped.Load() {
			return
		}
		fn(l.capability())
		if stopped.Load() {
			return
		}
		// Rescheduling fails only during shutdown, which also retires the
		// ticker.
		_ = l.schedule(time.Now().Add(d), tick)
	}
	if err := l.schedule(time.Now().Add(d), tick); err != nil {
		return nil, err
	}
	return func() { stopped.Store(true) }, nil
}

// Pending reports the number of continuations queued but not yet run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// PeakPending reports the deepest the continuation queue has been.
func (l *Loop) PeakPending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.depth.Peak())
}

func (l *Loop) capability() *LoopContext {
	return &LoopContext{ctx: l.baseCtx, loop: l}
}

func (l *Loop) postHosted(fn func(host)) error {
	return l.enqueue(func() {
		fn(host{loop: l})
	})
}

func (l *Loop) enqueue(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrContextUnavailable
	}
	l.queue.PushBack(fn)
	l.depth.Set(int64(l.queue.Len()))
	l.mu.Unlock()
	l.kick()
	return nil
}

func (l *Loop) schedule(at time.Time, fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrContextUnavailable
	}
	l.seq++
	heap.PushOrderable(&l.timers, timerEntry{when: at, seq: l.seq, fn: fn})
	l.mu.Unlock()
	l.kick()
	return nil
}

func (l *Loop) kick() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.kick()
}

// run executes continuations until the loop is closed and its queue has
// drained. Continuations accepted before shutdown still run; timers that
// have not yet fired are abandoned.
func (l *Loop) run() {
	for {
		fn, wait, alive := l.next(time.Now())
		if fn != nil {
			fn()
			continue
		}
		if !alive {
			return
		}
		if wait < 0 {
			<-l.wake
			continue
		}
		t := getTimer()
		t.Reset(wait)
		select {
		case <-l.wake:
		case <-t.C:
		}
		t.Stop()
		putTimer(t)
	}
}

// next fires due timers into the queue and pops the next continuation. When
// nothing is runnable it reports how long until the earliest timer (negative
// means no timer is set) and whether the loop should keep going.
func (l *Loop) next(now time.Time) (fn func(), wait time.Duration, alive bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		e, ok := heap.Peek(&l.timers)
		if !ok || e.when.After(now) {
			break
		}
		due, _ := heap.PopOrderable(&l.timers)
		l.queue.PushBack(due.fn)
		l.depth.Set(int64(l.queue.Len()))
	}
	if l.queue.Len() > 0 {
		return l.queue.PopFront(), 0, true
	}
	if l.closed {
		return nil, 0, false
	}
	if e, ok := heap.Peek(&l.timers); ok {
		return nil, e.when.Sub(now), true
	}
	return nil, -1, true
}

// Timer reuse relies on [Go 1.23+ behavior], making this little more than a
// type-safe wrapper over [sync.Pool].
//
// [Go 1.23+ behavior]: https://pkg.go.dev/time#NewTimer
var timerPool = sync.Pool{
	New: func() any {
		return time.NewTimer(0)
	},
}

func getTimer() *time.Timer {
	return timerPool.Get().(*time.Timer)
}

func putTimer(t *time.Timer) {
	timerPool.Put(t)
}
