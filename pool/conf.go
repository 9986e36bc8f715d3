package pool

import (
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/lanepool/internal/algorithms"
)

// BackoffType selects how a polling worker or an Await caller spaces out
// idle checks.
type BackoffType = algorithms.BackoffType

const (
	BackoffExponential  = algorithms.BackoffExponential
	BackoffJittered     = algorithms.BackoffJittered
	BackoffDecorrelated = algorithms.BackoffDecorrelated
	BackoffConstant     = algorithms.BackoffConstant
)

// Option is a functional option for configuring a ThreadPool.
type Option func(*poolConfig)

type poolConfig struct {
	workerCount int
	name        string
	logger      *zap.Logger
	metrics     Metrics
	rateLimiter *rate.Limiter

	polling     bool
	idleBackoff BackoffType
	idleInitial time.Duration
	idleMax     time.Duration

	awaitInitial time.Duration
	awaitMax     time.Duration

	stopTimeout time.Duration

	feedInterval time.Duration
	feedAmount   int

	lockOSThread bool
	pinCPU       bool
}

// WithWorkerCount sets the number of workers Start uses when called with a
// non-positive count. Defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *poolConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithName labels the pool in logs and metrics. Defaults to "pool-" plus a
// short random suffix.
func WithName(name string) Option {
	return func(cfg *poolConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the structured logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *poolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics installs a telemetry sink. Defaults to NilMetrics.
func WithMetrics(m Metrics) Option {
	return func(cfg *poolConfig) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithRateLimit caps how many tasks per second the whole pool starts.
// burst specifies how many may start back to back.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithPollingIdle makes idle workers poll the queue, sleeping on the given
// backoff schedule between empty scans, instead of blocking until a task is
// enqueued.
func WithPollingIdle(kind BackoffType, initial, maxDelay time.Duration) Option {
	return func(cfg *poolConfig) {
		if initial <= 0 {
			return
		}
		cfg.polling = true
		cfg.idleBackoff = kind
		cfg.idleInitial = initial
		cfg.idleMax = max(maxDelay, initial)
	}
}

// WithAwaitInterval bounds how often Await checks whether the pool stopped.
// The interval grows exponentially from initial to maxDelay.
func WithAwaitInterval(initial, maxDelay time.Duration) Option {
	return func(cfg *poolConfig) {
		if initial > 0 {
			cfg.awaitInitial = initial
			cfg.awaitMax = max(maxDelay, initial)
		}
	}
}

// WithStopTimeout sets the join timeout Close passes to Stop. Zero waits
// forever. Defaults to 5s.
func WithStopTimeout(d time.Duration) Option {
	return func(cfg *poolConfig) {
		if d >= 0 {
			cfg.stopTimeout = d
		}
	}
}

// WithStarvationFeed promotes every queued task by amount lanes each
// interval while the pool runs. Off by default, which keeps scheduling
// strictly by priority.
func WithStarvationFeed(interval time.Duration, amount int) Option {
	return func(cfg *poolConfig) {
		if interval > 0 && amount > 0 {
			cfg.feedInterval = interval
			cfg.feedAmount = amount
		}
	}
}

// WithOSThreads locks every worker goroutine to its own OS thread.
func WithOSThreads() Option {
	return func(cfg *poolConfig) {
		cfg.lockOSThread = true
	}
}

// WithCPUPinning locks every worker to an OS thread and pins worker i to
// CPU i mod NumCPU where the platform supports it.
func WithCPUPinning() Option {
	return func(cfg *poolConfig) {
		cfg.lockOSThread = true
		cfg.pinCPU = true
	}
}

func createConfig(opts ...Option) *poolConfig {
	cfg := &poolConfig{
		workerCount:  runtime.GOMAXPROCS(0),
		logger:       zap.NewNop(),
		metrics:      NilMetrics{},
		idleBackoff:  BackoffExponential,
		idleInitial:  time.Millisecond,
		idleMax:      50 * time.Millisecond,
		awaitInitial: time.Millisecond,
		awaitMax:     100 * time.Millisecond,
		stopTimeout:  5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.name == "" {
		cfg.name = "pool-" + uuid.NewString()[:8]
	}
	return cfg
}
