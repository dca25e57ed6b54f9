package graph

import "github.com/dshills/flowchart-go/graph/emit"

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.NewEngine(def, host,
//	    graph.WithInstanceID("order-42"),
//	    graph.WithMaxSteps(500),
//	    graph.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	instanceID string
	stateKey   string
	maxSteps   int
	emitter    emit.Emitter
	metrics    *PrometheusMetrics
}

// DefaultMaxSteps is the per-turn drain limit used when WithMaxSteps is not
// given.
const DefaultMaxSteps = 10_000

// WithInstanceID sets the identifier reported as RunID on every event.
func WithInstanceID(id string) Option {
	return func(cfg *engineConfig) error {
		cfg.instanceID = id
		return nil
	}
}

// WithStateKey overrides the key under which the engine stores its
// ExecutionState in the host. The default is "flowchart/<definition name>".
//
// Two flowcharts hosted by the same instance need distinct keys.
func WithStateKey(key string) Option {
	return func(cfg *engineConfig) error {
		if key == "" {
			return &EngineError{Message: "state key cannot be empty", Code: "INVALID_OPTION"}
		}
		cfg.stateKey = key
		return nil
	}
}

// WithMaxSteps limits how many nodes a single engine call may drain.
//
// Default: DefaultMaxSteps. Zero disables the limit.
//
// The limit is per turn, not per instance: a flowchart that loops through an
// asynchronous action yields to the host on every iteration and never hits
// it. Only purely synchronous cycles do. When exceeded the instance faults
// and the call returns an error wrapping ErrMaxStepsExceeded.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return &EngineError{Message: "max steps cannot be negative", Code: "INVALID_OPTION"}
		}
		cfg.maxSteps = n
		return nil
	}
}

// WithEmitter sets the observability emitter. The default discards events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.NewEngine(def, host, graph.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}
