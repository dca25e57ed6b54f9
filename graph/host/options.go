package host

import (
	"math/rand"

	"github.com/dshills/flowchart-go/graph"
	"github.com/dshills/flowchart-go/graph/emit"
)

// Option configures a Runtime.
type Option func(*runtimeConfig) error

type runtimeConfig struct {
	instanceID string
	vars       Variables
	emitter    emit.Emitter
	engineOpts []graph.Option
	rng        *rand.Rand
}

// WithInstanceID sets the instance ID. The default is a random UUID. It is
// ignored by Restore, which keeps the ID stored in the snapshot.
func WithInstanceID(id string) Option {
	return func(cfg *runtimeConfig) error {
		if id == "" {
			return &graph.EngineError{Message: "instance ID cannot be empty", Code: "INVALID_OPTION"}
		}
		cfg.instanceID = id
		return nil
	}
}

// WithVariables seeds the instance variables. Ignored by Restore.
func WithVariables(vars Variables) Option {
	return func(cfg *runtimeConfig) error {
		cfg.vars = make(Variables, len(vars))
		for k, v := range vars {
			cfg.vars[k] = v
		}
		return nil
	}
}

// WithEmitter sets the emitter for runtime events. It is also handed to the
// engine unless WithEngineOptions sets another one.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *runtimeConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithEngineOptions passes options through to graph.NewEngine.
func WithEngineOptions(opts ...graph.Option) Option {
	return func(cfg *runtimeConfig) error {
		cfg.engineOpts = append(cfg.engineOpts, opts...)
		return nil
	}
}

// WithRand sets the random source used for retry jitter.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *runtimeConfig) error {
		cfg.rng = rng
		return nil
	}
}
