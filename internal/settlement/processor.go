package settlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned for orders that were still queued, or submitted,
// after the processor shut down.
var ErrStopped = errors.New("trade processor stopped")

// job carries one order through the queue together with the channel its
// outcome is sent back on.
type job struct {
	ctx      context.Context
	order    Order
	resultCh chan outcome
}

type outcome struct {
	res *Result
	err error
}

// Processor runs settlements on a fixed worker pool in front of the engine.
// The pool bounds how many settlements hit the store at once; per-user
// isolation is the store's job, not the pool's.
type Processor struct {
	engine  *Engine
	logger  *slog.Logger
	workers int
	queue   chan job
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewProcessor creates a Processor with the given number of workers.
func NewProcessor(engine *Engine, workers int, logger *slog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		engine:  engine,
		logger:  logger,
		workers: workers,
		queue:   make(chan job, 100),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("trade workers started", slog.Int("workers", p.workers))
}

// Stop shuts the pool down, waits for in-flight settlements to finish, and
// answers any orders still sitting in the queue with ErrStopped.
func (p *Processor) Stop() {
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.drain()
	p.logger.Info("trade processor stopped")
}

// drain answers every queued order with ErrStopped. Result channels are
// buffered, so the sends never block.
func (p *Processor) drain() {
	for {
		select {
		case j := <-p.queue:
			j.resultCh <- outcome{err: ErrStopped}
		default:
			return
		}
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			p.drain()
			return

		case j := <-p.queue:
			p.logger.Debug("processing trade",
				slog.Int("worker", id),
				slog.Int64("user_id", j.order.UserID),
				slog.String("symbol", j.order.Symbol),
				slog.String("side", string(j.order.Side)),
				slog.Int64("quantity", j.order.Quantity),
			)

			res, err := p.engine.Settle(j.ctx, j.order)
			j.resultCh <- outcome{res: res, err: err}
		}
	}
}

// Submit queues an order and blocks until its settlement resolves, the pool
// shuts down, or the context is done.
func (p *Processor) Submit(ctx context.Context, o Order) (*Result, error) {
	// The read lock holds off Stop's final drain, so an order enqueued here
	// is always answered, by a worker or by the drain.
	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrStopped
	}

	resultCh := make(chan outcome, 1)

	select {
	case p.queue <- job{ctx: ctx, order: o, resultCh: resultCh}:
		p.mu.RUnlock()
	case <-p.stopCh:
		p.mu.RUnlock()
		return nil, ErrStopped
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case out := <-resultCh:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
