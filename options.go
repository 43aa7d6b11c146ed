package groupworker

import (
	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/hugolhafner/go-groupworker/metrics"
	"github.com/hugolhafner/go-groupworker/otel"
	"github.com/hugolhafner/go-groupworker/rebalance"
	"github.com/hugolhafner/go-groupworker/serde"
)

// Options are the collaborators of a Worker. Anything left nil is defaulted
// in New.
type Options struct {
	Logger     logger.Logger
	Metrics    *metrics.Metrics
	Telemetry  *otel.Telemetry
	Summariser serde.Summariser
	Notifier   Notifier
	Rebalance  *rebalance.Handler
	// CommitBackoff spaces commit retries. Defaults to a fixed
	// CommitRetryBackoff from the config.
	CommitBackoff backoff.Backoff
}

type Option func(*Options)

func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(o *Options) {
		o.Telemetry = t
	}
}

// WithSummariser overrides the payload summary used in record log lines.
// Without it the config's PayloadFormat decides.
func WithSummariser(s serde.Summariser) Option {
	return func(o *Options) {
		o.Summariser = s
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *Options) {
		o.Notifier = n
	}
}

// WithRebalanceHandler lets the caller keep a reference to the handler
// owning the assignment. A handler built without a logger or observer gets
// the worker's.
func WithRebalanceHandler(h *rebalance.Handler) Option {
	return func(o *Options) {
		o.Rebalance = h
	}
}

func WithCommitBackoff(b backoff.Backoff) Option {
	return func(o *Options) {
		o.CommitBackoff = b
	}
}

// fillDefaults restores the defaults an option set to nil.
func (o *Options) fillDefaults() {
	d := defaultOptions()
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Metrics == nil {
		o.Metrics = d.Metrics
	}
	if o.Telemetry == nil {
		o.Telemetry = d.Telemetry
	}
}

func defaultOptions() Options {
	return Options{
		Logger:    logger.NewNoopLogger(),
		Metrics:   metrics.Noop(),
		Telemetry: otel.Noop(),
	}
}
