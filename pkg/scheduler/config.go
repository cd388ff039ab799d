package scheduler

import (
	"time"

	"github.com/creasty/defaults"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
)

// WaitForTickets is the three-valued control over how a submission's
// ticket acquisition behaves.
type WaitForTickets int

const (
	// WaitNormally drives the rate limiter with the iteration's
	// computed wait budget.
	WaitNormally WaitForTickets = iota
	// DoNotWait takes only an immediately-available ticket.
	DoNotWait
	// IgnoreEntirely bypasses the rate limiter and produces a synthetic
	// ticket without consulting it.
	IgnoreEntirely
)

// ThreadPoolConfig mirrors requestProcessingThreadPoolConfig.
type ThreadPoolConfig struct {
	Min int `default:"0"`
	Max int `default:"4"`
}

// Config is the immutable policy bundle. It is constructed once via
// NewConfig (or the generated functional options in
// zz_generated_options.go) and never mutated afterwards; the engine
// reads it from multiple goroutines without synchronization.
type Config struct {
	ServiceName      string        `default:"rrlsched"`
	UseDaemonThreads bool          `default:"true"`
	MaxAttempts      int           `default:"3"`
	DelaysAfterFailure []time.Duration

	MaxPendingRequests                int           `default:"1000"`
	RequestEarlyProcessingGracePeriod time.Duration `default:"50ms"`

	DelayQueues                []time.Duration
	DelayQueueTooLongGracePeriod time.Duration `default:"1s"`

	RateLimiterBucketSize     int64         `default:"0"`
	RateLimiterRefillRate     int64         `default:"0"`
	RateLimiterRefillInterval time.Duration `default:"1s"`

	RequestProcessingThreadPoolConfig ThreadPoolConfig

	MaxSleepTime time.Duration `default:"1s"`

	ShutdownBufferTimePerc int `default:"10"`

	MainQueueMaxRequestHandoverWaitTime time.Duration `default:"1s"`

	// MainQueueUnexpectedExceptionLimit and MainQueueInterruptedExceptionLimit
	// bound consecutive hook panics before the engine stops invoking
	// Hooks entirely; MainQueueRuntimeExceptionLimit bounds consecutive
	// panics inside the main loop's own iteration before the loop exits;
	// DelayQueueUnexpectedExceptionLimit bounds the same for a delay
	// tier's worker goroutine.
	MainQueueUnexpectedExceptionLimit  int `default:"100"`
	MainQueueInterruptedExceptionLimit int `default:"100"`
	MainQueueRuntimeExceptionLimit     int `default:"100"`
	DelayQueueUnexpectedExceptionLimit int `default:"100"`
}

// defaultConfig returns a Config with every `default` struct tag applied plus
// the two non-scalar fields (DelaysAfterFailure, DelayQueues) that
// defaults.Set cannot populate with a meaningful business value.
func defaultConfig() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DelaysAfterFailure = []time.Duration{500 * time.Millisecond}
	cfg.DelayQueues = []time.Duration{100 * time.Millisecond, time.Second, 10 * time.Second}
	return cfg
}

// NewConfig builds a Config from defaults plus the supplied options and
// validates it. The WithXxx option constructors are generated in
// zz_generated_options.go; any other func(*Config) converted to
// ConfigOption works the same way.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxAttempts <= 0 {
		return rrlerrors.NewValidationError("maxAttempts", "must be positive")
	}
	if len(c.DelaysAfterFailure) == 0 {
		return rrlerrors.NewValidationError("delaysAfterFailure", "must be non-empty")
	}
	for _, d := range c.DelaysAfterFailure {
		if d < 0 {
			return rrlerrors.NewValidationError("delaysAfterFailure", "entries must be non-negative")
		}
	}
	if c.MaxPendingRequests <= 0 {
		return rrlerrors.NewValidationError("maxPendingRequests", "must be positive")
	}
	if len(c.DelayQueues) == 0 {
		return rrlerrors.NewValidationError("delayQueues", "must be non-empty")
	}
	for i, d := range c.DelayQueues {
		if d <= 0 {
			return rrlerrors.NewValidationError("delayQueues", "entries must be positive")
		}
		if i > 0 && d <= c.DelayQueues[i-1] {
			return rrlerrors.NewValidationError("delayQueues", "entries must be strictly ascending")
		}
	}
	if c.RateLimiterBucketSize < 0 {
		return rrlerrors.NewValidationError("rateLimiterBucketSize", "must be non-negative")
	}
	if c.RequestProcessingThreadPoolConfig.Max < 1 {
		return rrlerrors.NewValidationError("requestProcessingThreadPoolConfig.max", "must be >= 1")
	}
	if c.RequestProcessingThreadPoolConfig.Min < 0 || c.RequestProcessingThreadPoolConfig.Min > c.RequestProcessingThreadPoolConfig.Max {
		return rrlerrors.NewValidationError("requestProcessingThreadPoolConfig.min", "must satisfy 0 <= min <= max")
	}
	if c.ShutdownBufferTimePerc < 0 || c.ShutdownBufferTimePerc > 100 {
		return rrlerrors.NewValidationError("shutdownBufferTimePerc", "must be within [0, 100]")
	}
	return nil
}

// delayForAttempt implements "attempt k's post-failure delay uses index
// min(k, len-1)".
func (c *Config) delayForAttempt(attempt int) time.Duration {
	idx := attempt
	if idx >= len(c.DelaysAfterFailure) {
		idx = len(c.DelaysAfterFailure) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return c.DelaysAfterFailure[idx]
}

// rateLimitingEnabled reports whether a non-stub limiter should be used.
func (c *Config) rateLimitingEnabled() bool {
	return c.RateLimiterBucketSize > 0
}
