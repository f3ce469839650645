package lhd

import "fmt"

// Default tuning constants, matching the values spec.md calls out as
// typical. They are applied by Config.withDefaults wherever the caller
// leaves the corresponding field at its zero value.
const (
	DefaultMaxAge                      = 1 << 15
	DefaultAppClasses                  = 4
	DefaultHitAgeClasses               = 4
	DefaultNumClasses                  = DefaultAppClasses * DefaultHitAgeClasses
	DefaultAccsPerReconfiguration      = 1 << 20
	DefaultEwmaDecay                   = 0.9
	DefaultAgeCoarseningErrorTolerance = 0.01
	DefaultAssociativity               = 64

	// warmupAssociativity and warmupReconfigurations implement the
	// faster-convergence sampling schedule from spec.md §4.5: K=8 while
	// numReconfigurations <= warmupReconfigurations, Associativity after.
	warmupAssociativity    = 8
	warmupReconfigurations = 50

	// densityEpsilon is the ε below which a class/age bucket has too few
	// observed events to trust a hit-density estimate; it falls back to 0.
	densityEpsilon = 1e-5

	// The coarsening controller only recomputes its shift at these two
	// one-shot points in the reconfiguration schedule (spec.md §4.9).
	coarseningScheduleFirst  = 5
	coarseningScheduleSecond = 25
	// coarseningRebaseFactor inflates the EWMA mass after a shift change
	// to delay the next adjustment.
	coarseningRebaseFactor = 8
)

// Config collects every build/construction-time knob spec.md §6 names.
// The zero value is not valid on its own; New fills unset fields via
// withDefaults and panics if the result is inconsistent.
type Config struct {
	// MaxAge is the histogram length. Must be a power of two.
	MaxAge uint32
	// AppClasses is the number of application buckets (tag.app ranges
	// over [0, AppClasses)).
	AppClasses uint32
	// HitAgeClasses is the number of recent-reuse buckets per application.
	HitAgeClasses uint32
	// NumClasses must equal AppClasses * HitAgeClasses; left at 0 it is
	// derived automatically.
	NumClasses uint32
	// AccsPerReconfiguration is the reconfigure period, in updates.
	AccsPerReconfiguration uint64
	// EwmaDecay is the per-reconfiguration histogram forgetting factor.
	EwmaDecay float64
	// AgeCoarseningErrorTolerance is the target fraction of objects whose
	// true age exceeds MaxAge << ageCoarseningShift.
	AgeCoarseningErrorTolerance float64
	// Associativity is the steady-state victim sample count.
	Associativity int
	// RNGSeed seeds the deterministic sampler. Zero selects a fixed,
	// documented default seed rather than "no seed" — determinism is
	// the point, so there is no unseeded mode.
	RNGSeed uint64
	// DumpRanks enables the reconfiguration-time diagnostic dump. It has
	// no effect on model state (spec.md §6).
	DumpRanks bool
}

func (c Config) withDefaults() Config {
	if c.MaxAge == 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.AppClasses == 0 {
		c.AppClasses = DefaultAppClasses
	}
	if c.HitAgeClasses == 0 {
		c.HitAgeClasses = DefaultHitAgeClasses
	}
	if c.NumClasses == 0 {
		c.NumClasses = c.AppClasses * c.HitAgeClasses
	}
	if c.AccsPerReconfiguration == 0 {
		c.AccsPerReconfiguration = DefaultAccsPerReconfiguration
	}
	if c.EwmaDecay == 0 {
		c.EwmaDecay = DefaultEwmaDecay
	}
	if c.AgeCoarseningErrorTolerance == 0 {
		c.AgeCoarseningErrorTolerance = DefaultAgeCoarseningErrorTolerance
	}
	if c.Associativity == 0 {
		c.Associativity = DefaultAssociativity
	}
	return c
}

func (c Config) validate() error {
	if c.MaxAge < 2 || c.MaxAge&(c.MaxAge-1) != 0 {
		return fmt.Errorf("lhd: MaxAge must be a power of two >= 2, got %d", c.MaxAge)
	}
	if c.NumClasses != c.AppClasses*c.HitAgeClasses {
		return fmt.Errorf("lhd: NumClasses (%d) must equal AppClasses*HitAgeClasses (%d*%d)",
			c.NumClasses, c.AppClasses, c.HitAgeClasses)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("lhd: Associativity must be > 0, got %d", c.Associativity)
	}
	if c.AccsPerReconfiguration == 0 {
		return fmt.Errorf("lhd: AccsPerReconfiguration must be > 0")
	}
	return nil
}
