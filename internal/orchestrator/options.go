package orchestrator

import (
	"runtime"
	"time"
)

// Options controls an optimization run. Zero-valued numeric fields are filled
// with defaults by normalize; start from DefaultOptions when overriding only a
// few knobs, since the boolean fields default to enabled.
type Options struct {
	MaxIterations      int     `json:"max_iterations"`
	InitialTemperature float64 `json:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate"`
	ParallelChains     int     `json:"parallel_chains"`
	MaxWorkers         int     `json:"max_workers"`
	AdaptiveCooling    bool    `json:"adaptive_cooling"`
	EnableCache        bool    `json:"enable_cache"`
	CacheSize          int     `json:"cache_size"`
	BaseSeed           int64   `json:"base_seed"`
	PerChainTimeoutMs  int     `json:"per_chain_timeout_ms"`
	DiversityThreshold float64 `json:"diversity_threshold"`
	RefinementPasses   int     `json:"refinement_passes"`
}

// DefaultOptions returns the standard configuration: 15000 iterations across
// min(8, cores) chains, geometric cooling from T0 100, a 10000-entry
// evaluation cache, and a clock-derived base seed.
func DefaultOptions() Options {
	return Options{
		MaxIterations:      15000,
		InitialTemperature: 100.0,
		CoolingRate:        0.95,
		ParallelChains:     defaultChains(),
		MaxWorkers:         runtime.NumCPU(),
		AdaptiveCooling:    true,
		EnableCache:        true,
		CacheSize:          10000,
		BaseSeed:           time.Now().UnixNano(),
		PerChainTimeoutMs:  300000,
		DiversityThreshold: 0.1,
		RefinementPasses:   3,
	}
}

func defaultChains() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// normalize fills zero-valued numeric fields with defaults. Boolean flags are
// taken as given.
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.InitialTemperature <= 0 {
		o.InitialTemperature = def.InitialTemperature
	}
	if o.CoolingRate <= 0 || o.CoolingRate >= 1 {
		o.CoolingRate = def.CoolingRate
	}
	if o.ParallelChains <= 0 {
		o.ParallelChains = def.ParallelChains
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = def.MaxWorkers
	}
	if o.CacheSize <= 0 {
		o.CacheSize = def.CacheSize
	}
	if o.BaseSeed == 0 {
		o.BaseSeed = def.BaseSeed
	}
	if o.PerChainTimeoutMs <= 0 {
		o.PerChainTimeoutMs = def.PerChainTimeoutMs
	}
	if o.DiversityThreshold <= 0 {
		o.DiversityThreshold = def.DiversityThreshold
	}
	if o.RefinementPasses <= 0 {
		o.RefinementPasses = def.RefinementPasses
	}
	return o
}

// perChainTimeout converts the millisecond knob into a duration.
func (o Options) perChainTimeout() time.Duration {
	return time.Duration(o.PerChainTimeoutMs) * time.Millisecond
}

// Event is a progress notification emitted during optimization.
type Event struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Progress event kinds.
const (
	EventOptimizationStart    = "optimization:start"
	EventChainDone            = "chain:done"
	EventRefinementDone       = "refinement:done"
	EventOptimizationComplete = "optimization:complete"
)

// ProgressFunc receives progress events. Callbacks run on the orchestrator
// goroutine and should return quickly.
type ProgressFunc func(Event)
