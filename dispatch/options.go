package dispatch

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	lg              *zap.Logger
	metrics         MetricsHook
	registry        *Registry
	deadLetter      DispatchChannel
	workers         int
	callbackTimeout time.Duration
	commandTimeout  time.Duration
	reconnect       ReconnectPolicy
}

// ReconnectPolicy shapes the delays between failed Connect attempts.
type ReconnectPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
}

func defaultOptions() options {
	return options{
		lg:             zap.NewNop(),
		metrics:        noopMetrics{},
		workers:        16,
		commandTimeout: 5 * time.Second,
		reconnect: ReconnectPolicy{
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			Jitter:         0.2,
		},
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.lg = lg
		}
	}
}

func WithMetrics(m MetricsHook) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithRegistry injects the registry the manager routes through.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithDeadLetter sets the channel that receives messages for topics with no
// registered consumer. Without it such messages are logged and dropped.
func WithDeadLetter(ch DispatchChannel) Option {
	return func(o *options) {
		o.deadLetter = ch
	}
}

// WithWorkers sets how many notification goroutines are kept warm. The
// pool grows past this when every worker is busy. Default: 16.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCallbackTimeout bounds the ctx handed to each channel callback.
// Default: no deadline.
func WithCallbackTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callbackTimeout = d
		}
	}
}

// WithCommandTimeout bounds each upstream subscribe/unsubscribe command
// issued by a resubscription sweep. Default: 5s.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.commandTimeout = d
		}
	}
}

func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(o *options) {
		o.reconnect = p
	}
}
