// Package workerpool defines the "start a worker task" capability the
// scheduler engine consumes, plus a default goroutine-based
// implementation adapted from the fixed-size worker/dispatch mechanism
// this repository already used for async work scheduling.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Task is a unit of work submitted to a Pool. It is handed a context
// that is cancelled when the owning PoolFuture is cancelled or the pool
// is shut down.
type Task func(ctx context.Context)

// PoolFuture represents a task accepted by the pool. Cancel is
// best-effort: a task already running is not interrupted, matching the
// engine's "no cancellation of an already-dispatched handler invocation"
// rule; Cancel before the task starts prevents it from ever running.
type PoolFuture interface {
	Cancel()
}

// Pool is the capability the engine depends on. min/max sizing,
// scheduling-hint priorities, and daemon-thread semantics are advisory
// concerns of the concrete implementation; the engine only needs
// Submit, ActiveCount, IsAlive and ShutdownNow.
type Pool interface {
	Submit(task Task) PoolFuture
	ActiveCount() int
	IsAlive() bool
	ShutdownNow()
}

type poolFuture struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (f *poolFuture) Cancel() {
	f.once.Do(f.cancel)
}

// SimplePool is the reference Pool implementation: at most max task
// goroutines run at once, governed by a counting semaphore, and one is
// started per accepted task. Min is recorded but keeps no goroutines
// alive: it does not pre-spawn idle goroutines; Go's scheduler is
// trusted to multiplex them cheaply.
type SimplePool struct {
	name    string
	min     int
	max     int
	sem     chan struct{}
	active  int64
	alive   int64
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	logger  *zap.SugaredLogger
}

// Config mirrors the engine's requestProcessingThreadPoolConfig {min, max}.
type Config struct {
	Min int
	Max int
}

// NewSimplePool constructs a pool named for logging/thread-naming
// purposes, mirroring the serviceName-in-thread-names convention used
// throughout the scheduler package.
func NewSimplePool(name string, cfg Config) *SimplePool {
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Min < 0 {
		cfg.Min = 0
	}
	if cfg.Min > cfg.Max {
		cfg.Min = cfg.Max
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &SimplePool{
		name:    name,
		min:     cfg.Min,
		max:     cfg.Max,
		sem:     make(chan struct{}, cfg.Max),
		alive:   1,
		baseCtx: ctx,
		cancel:  cancel,
		logger:  zap.S().Named("workerpool").With("pool", name),
	}
	return p
}

func (p *SimplePool) Submit(task Task) PoolFuture {
	taskCtx, cancel := context.WithCancel(p.baseCtx)
	pf := &poolFuture{cancel: cancel}

	if !p.acquireSlot() {
		// pool is shut down or saturated beyond recovery; report a
		// cancelled future so the engine's resource-acquisition wait
		// times out and requeues rather than deadlocking.
		cancel()
		return pf
	}

	p.wg.Add(1)
	atomic.AddInt64(&p.active, 1)
	go func() {
		defer func() {
			atomic.AddInt64(&p.active, -1)
			<-p.sem
			p.wg.Done()
		}()
		if taskCtx.Err() != nil {
			return
		}
		task(taskCtx)
	}()

	return pf
}

// acquireSlot takes a semaphore slot, retrying with exponential backoff
// (1ms initial, 50ms max interval, at most 40 tries) while all max slots
// are taken. It gives up at once, returning false, if the pool is shut
// down, and also returns false once the tries are used up.
func (p *SimplePool) acquireSlot() bool {
	if atomic.LoadInt64(&p.alive) == 0 {
		return false
	}

	op := func() (bool, error) {
		select {
		case p.sem <- struct{}{}:
			return true, nil
		default:
			if atomic.LoadInt64(&p.alive) == 0 {
				return false, backoff.Permanent(fmt.Errorf("pool %q is shut down", p.name))
			}
			return false, fmt.Errorf("pool %q saturated", p.name)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond

	ok, err := backoff.Retry(context.Background(), op, backoff.WithBackOff(b), backoff.WithMaxTries(40))
	if err != nil {
		p.logger.Debugw("worker slot unavailable", "error", err)
		return false
	}
	return ok
}

func (p *SimplePool) ActiveCount() int {
	return int(atomic.LoadInt64(&p.active))
}

func (p *SimplePool) IsAlive() bool {
	return atomic.LoadInt64(&p.alive) != 0
}

func (p *SimplePool) ShutdownNow() {
	if !atomic.CompareAndSwapInt64(&p.alive, 1, 0) {
		return
	}
	p.cancel()
	p.wg.Wait()
}
