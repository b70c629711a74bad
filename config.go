package loom

import (
	"github.com/ygrebnov/loom/events"
	"github.com/ygrebnov/loom/metrics"
)

// Config holds Run's configuration.
type Config struct {
	// Domains is the number of scheduling domains to run, each with its own
	// executor goroutine. Domain 0 hosts the root promise.
	// Default: runtime.GOMAXPROCS(0) worth of domains, set by buildConfig.
	Domains int

	// Quanta is the maximum number of synchronous scheduling-point effects
	// a task may perform in one turn before it is forced to yield and
	// re-enqueue at its domain's ready-queue tail.
	// Default: 64.
	Quanta int

	// Seed seeds the dispatcher's tie-break PRNG, so repeated Runs with the
	// same Seed place Call/Parallel tasks identically.
	// Default: 1.
	Seed uint64

	// EventsFactory builds the events.Provider for a given domain. When nil,
	// every domain gets a fresh events.NoopProvider.
	EventsFactory events.Factory

	// EffectWrapper, when set, wraps every task body (the root function and
	// every Call/CallCC child) before it runs. The wrapper is opaque to the
	// scheduler: it is applied once per task and never inspected.
	EffectWrapper func(Func) Func

	// Logger receives structured log lines for run lifecycle events (run
	// start, run finish, and a fatal condition that aborts the run); domain
	// start/stop and cancellation are not logged. When nil, a
	// logiface/stumpy-backed default logger is used.
	Logger Logger

	// Metrics receives Stats()-visible counters and histograms. When nil,
	// a no-op provider is used.
	Metrics metrics.Provider
}

// buildConfig assembles a Config from defaultConfig() and opts, applying
// functional options over a flat Config and validating the result once.
func buildConfig(opts ...Option) (Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Domains: defaultDomainCount(),
		Quanta:  64,
		Seed:    1,
	}
}

// validateConfig performs lightweight invariant checks on a built Config.
func validateConfig(cfg *Config) error {
	if cfg.Domains <= 0 {
		return ErrInvalidConfig
	}
	if cfg.Quanta <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
