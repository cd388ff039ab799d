// This file wires together the small set of cooperating components that
// make up the engine:
//
//	main queue (chan *entry) -> mainLoop -> worker pool
//	                                 |
//	                                 v
//	                          delay-queue tiers
//
// Every component reachable from the engine communicates through
// channels or atomics; no per-entry mutex is used (see entry.go).
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
	"github.com/arrowlabs/rrlsched/pkg/ratelimiter"
	"github.com/arrowlabs/rrlsched/pkg/workerpool"
)

// Processor is the caller-supplied work function. It receives the
// original submitted input and returns
// either a result or an error that drives the retry decision.
type Processor func(input any) (any, error)

// Engine is the RRL scheduling engine and its satellite components.
// Construct with NewEngine, then call Start before submitting work.
type Engine struct {
	cfg       *Config
	processor Processor
	hooks     Hooks
	listener  Listener

	ts      *timeSource
	pool    workerpool.Pool
	limiter ratelimiter.Limiter

	mainQueue chan *entry
	tiers     []*delayTier

	controlState atomic.Pointer[ControlState]
	inFlight     atomic.Int64

	spiUnexpectedFaults  atomic.Int64
	spiInterruptedFaults atomic.Int64

	closeCh      chan struct{}
	mainLoopDone chan struct{}
	wg           sync.WaitGroup

	lifecycleMu  sync.Mutex
	shutdownOnce sync.Once

	statusMu     sync.Mutex
	cachedStatus Status
	cachedAtReal time.Time

	log *zap.SugaredLogger
}

// NewEngine wires a Config, a Processor, a worker Pool, and a rate
// Limiter into a ready-to-Start Engine. Extra Listeners are fanned out
// alongside the default logging listener; hooks runs after listener
// dispatch for every terminal event.
func NewEngine(cfg *Config, processor Processor, pool workerpool.Pool, limiter ratelimiter.Limiter, hooks Hooks, listeners ...Listener) *Engine {
	e := &Engine{
		cfg:       cfg,
		processor: processor,
		hooks:     hooks,
		ts:        newTimeSource(),
		pool:      pool,
		limiter:   limiter,
		mainQueue: make(chan *entry, cfg.MaxPendingRequests),
		closeCh:   make(chan struct{}),
		log:       zap.S().Named("scheduler").With("service", cfg.ServiceName),
	}
	e.controlState.Store(&NotStarted)

	all := append([]Listener{newLoggingListener()}, listeners...)
	lastResort := newLoggingListener()
	e.listener = &multiListener{listeners: all, lastResort: lastResort}

	e.tiers = make([]*delayTier, len(cfg.DelayQueues))
	for i, d := range cfg.DelayQueues {
		e.tiers[i] = newDelayTier(d.Milliseconds(), cfg.MaxPendingRequests, e)
	}

	return e
}

// Start transitions the engine from NotStarted to Running and launches
// its background goroutines. Calling Start more than once returns
// IllegalStateError.
func (e *Engine) Start() error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	cs := e.getControlState()
	if !cs.isNotStarted() {
		return rrlerrors.NewIllegalStateError(cs.Description, Running.Description)
	}

	e.mainLoopDone = make(chan struct{})
	e.setControlState(Running)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.mainLoop()
	}()

	for _, t := range e.tiers {
		t := t
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			t.run(e.closeCh)
		}()
	}
	return nil
}

func (e *Engine) getControlState() ControlState {
	return *e.controlState.Load()
}

// setControlState installs a new control state and emits
// serviceControlStateChanged, matching every other mutation path in the
// engine.
func (e *Engine) setControlState(cs ControlState) {
	e.controlState.Store(&cs)
	e.emit(Event{Kind: EventServiceControlStateChanged, Timestamp: e.ts.now(), ControlState: cs, Detail: cs.Description})
}

func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.ts.now()
	}
	e.listener.OnEvent(ev)
}
