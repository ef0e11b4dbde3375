package workers

import (
	"context"
	"sync"
)

const DefaultSize = 4

// Pool runs blocking work on a fixed set of goroutines. Chat sessions push
// their persistence calls here so one slow write cannot stall the dispatch
// of other connections' events.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		tasks:  make(chan func(), size*4),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// Submit enqueues fn and returns immediately. After Shutdown it is a no-op.
func (p *Pool) Submit(fn func()) {
	select {
	case <-p.ctx.Done():
	case p.tasks <- fn:
	}
}

// Do enqueues fn and blocks the caller until it has run. A session awaits
// each of its own persistence calls through Do, which keeps its inbound
// processing strictly sequential while other sessions keep dispatching.
func (p *Pool) Do(fn func()) {
	done := make(chan struct{})

	p.Submit(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
	case <-p.ctx.Done():
	}
}

// Shutdown stops the workers. Queued tasks that have not started are dropped.
func (p *Pool) Shutdown() {
	p.once.Do(p.cancel)
	p.wg.Wait()
}
