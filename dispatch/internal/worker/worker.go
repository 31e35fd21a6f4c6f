package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("worker: pool closed")

// Pool keeps size goroutines warm and grows past them whenever a job is
// submitted with no idle worker to take it. Extra goroutines exit once the
// queue is empty. Submit never waits, and a job never waits behind a busy
// one.
type Pool struct {
	size    int
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	idle    int
	running int
	closed  bool
	wg      sync.WaitGroup
}

type job struct {
	ctx context.Context
	fn  func(context.Context)
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)
	p.mu.Lock()
	for i := 0; i < size; i++ {
		p.spawn(true)
	}
	p.mu.Unlock()
	return p
}

// spawn must be called with mu held.
func (p *Pool) spawn(core bool) {
	p.running++
	p.wg.Add(1)
	go p.work(core)
}

func (p *Pool) work(core bool) {
	defer p.wg.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for len(p.queue) == 0 {
			if p.closed || !core {
				p.running--
				return
			}
			p.idle++
			p.cond.Wait()
			p.idle--
		}
		j := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.mu.Unlock()
		j.fn(j.ctx)
		p.mu.Lock()
	}
}

// Submit queues fn. The ctx is handed to fn as is; a ctx that is already
// done is rejected.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, job{ctx: ctx, fn: fn})
	// A signalled worker still counts as idle until it wakes, so compare
	// against the whole queue.
	if len(p.queue) > p.idle {
		p.spawn(false)
		return nil
	}
	p.cond.Signal()
	return nil
}

// Close stops intake. Jobs already queued still run.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Running is the number of live goroutines, warm ones included.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pool) Size() int { return p.size }
