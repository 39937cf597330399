// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/loomkit/loom/internal/state"
)

// Pool is the set of persistent worker goroutines of a [Runtime]. Steps
// placed with [OnWorker] or dispatched with [ToWorker] run on whichever
// worker becomes free first; a [ToToken] switch carrying a worker token runs
// on that exact worker. Each worker executes one continuation at a time, so
// state confined to a single worker token is as race-free as state confined
// to the loop.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	shared  deque.Deque[func(*worker)]
	workers []*worker
	closed  bool
	busy    state.Gauge
	backlog state.Gauge
	wg      sync.WaitGroup
}

type worker struct {
	pool  *Pool
	token Token

	// direct holds continuations addressed to this specific worker. It is
	// guarded by pool.mu and always served before the shared queue.
	direct deque.Deque[func(*worker)]
}

func newPool(size int) *Pool {
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	p.workers = make([]*worker, size)
	for i := range p.workers {
		w := &worker{pool: p}
		w.token = newToken(AffinityWorker, w)
		p.workers[i] = w
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run()
	}
	return p
}

// Size reports the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Busy reports how many workers are currently executing a continuation.
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.busy.Current())
}

// PeakBusy reports the most workers that have ever been executing at once.
func (p *Pool) PeakBusy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.busy.Peak())
}

// Backlog reports the number of continuations waiting on the shared queue.
func (p *Pool) Backlog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shared.Len()
}

// Tokens returns the tokens of all workers in the pool.
func (p *Pool) Tokens() []Token {
	ts := make([]Token, len(p.workers))
	for i, w := range p.workers {
		ts[i] = w.token
	}
	return ts
}

// submit queues fn for whichever worker frees up first.
func (p *Pool) submit(fn func(*worker)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrContextUnavailable
	}
	p.shared.PushBack(fn)
	p.backlog.Set(int64(p.shared.Len()))
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

func (p *Pool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool) wait() {
	p.wg.Wait()
}

// post queues fn for this specific worker. Unlike a shared submit this must
// wake every waiter: a targeted continuation is invisible to the other
// workers' queue checks, so a single Signal could land on a worker that goes
// straight back to sleep.
func (w *worker) post(fn func(*worker)) error {
	p := w.pool
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrContextUnavailable
	}
	w.direct.PushBack(fn)
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

func (w *worker) postHosted(fn func(host)) error {
	return w.post(func(self *worker) {
		fn(host{worker: self})
	})
}

// run serves the worker's own queue ahead of the shared queue until the pool
// is closed and both are empty.
func (w *worker) run() {
	p := w.pool
	defer p.wg.Done()
	p.mu.Lock()
	for {
		if w.direct.Len() > 0 {
			w.invoke(w.direct.PopFront())
			continue
		}
		if p.shared.Len() > 0 {
			fn := p.shared.PopFront()
			p.backlog.Set(int64(p.shared.Len()))
			w.invoke(fn)
			continue
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.cond.Wait()
	}
}

// invoke runs fn with the pool lock released, reacquiring it before
// returning to the scheduling loop.
func (w *worker) invoke(fn func(*worker)) {
	p := w.pool
	p.busy.Inc()
	p.mu.Unlock()
	fn(w)
	p.mu.Lock()
	p.busy.Dec()
}
