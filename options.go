package loom

import (
	"github.com/ygrebnov/loom/events"
	"github.com/ygrebnov/loom/metrics"
)

// Option is a functional option that configures Run, assembling a flat
// Config consumed by buildConfig.
type Option func(*Config)

// WithDomains sets the number of scheduling domains. Panics if n <= 0.
func WithDomains(n int) Option {
	if n <= 0 {
		panic("loom: WithDomains requires n > 0")
	}
	return func(c *Config) { c.Domains = n }
}

// WithQuanta sets the per-turn scheduling-point quota before a forced yield.
// Panics if n <= 0.
func WithQuanta(n int) Option {
	if n <= 0 {
		panic("loom: WithQuanta requires n > 0")
	}
	return func(c *Config) { c.Quanta = n }
}

// WithSeed sets the dispatcher's tie-break PRNG seed.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithEventsFactory supplies the events.Provider used by every domain. Pass
// a factory backed by events.NewManualProvider for deterministic tests.
func WithEventsFactory(f events.Factory) Option {
	return func(c *Config) { c.EventsFactory = f }
}

// WithEffectWrapper sets a wrapper applied around every task body (root and
// every spawned child) before it runs. The scheduler treats it as opaque:
// the core calls it once per task to wrap the body and never inspects it.
func WithEffectWrapper(w func(Func) Func) Option {
	return func(c *Config) { c.EffectWrapper = w }
}

// WithLogger sets the structured logger used for scheduler lifecycle events.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the metrics.Provider backing Stats().
func WithMetrics(p metrics.Provider) Option {
	return func(c *Config) { c.Metrics = p }
}
