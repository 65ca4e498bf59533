// Package config defines the run parameters a coheresim invocation needs
// and validates them before the simulation starts.
package config

import (
	"errors"
	"fmt"
)

// Default core count used when a run doesn't override it.
const DefaultNumCores = 4

// Config is a plain struct populated by CLI flags (see cmd/coheresim).
type Config struct {
	// TracePrefix names the per-core trace files: "<prefix>_proc<id>.trace".
	TracePrefix string
	// NumCores is the number of processor/cache pairs to simulate.
	NumCores int

	// SetIndexBits, Associativity, BlockOffsetBits configure every Cache
	// identically; all three are required and must be positive.
	SetIndexBits    uint
	Associativity   int
	BlockOffsetBits uint

	// OutputPath is where the final report is written; empty means
	// stdout.
	OutputPath string

	// BusUpgradeRespondsWithData threads through to every cache.Config;
	// see DESIGN.md Open Question (b).
	BusUpgradeRespondsWithData bool

	// CycleCeiling bounds a pathological run; 0 means use the package
	// default.
	CycleCeiling int

	// Verbose enables the per-cache Dump() output on completion.
	Verbose bool

	// GlobalPlugins and CorePlugins name hook plugins to activate via the
	// hooks.Registry, by registry key.
	GlobalPlugins []string
	CorePlugins   []string
}

// DefaultCycleCeiling is the cycle count the Simulator self-terminates at
// if a run never reaches natural completion.
const DefaultCycleCeiling = 10_000_000

// Validate checks every structural constraint a run requires, returning a
// single joined error naming every violation at once rather than failing
// on the first.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: config is nil")
	}

	var errs []error
	if c.TracePrefix == "" {
		errs = append(errs, errors.New("config: trace prefix (-t) is required"))
	}
	if c.NumCores < 0 {
		errs = append(errs, fmt.Errorf("config: NumCores must be non-negative, got %d", c.NumCores))
	}
	if c.Associativity <= 0 {
		errs = append(errs, fmt.Errorf("config: associativity (-E) must be positive, got %d", c.Associativity))
	}
	// s and b are required to be positive on the CLI surface, even though 0
	// is a structurally valid address-decomposition value (a single-set
	// cache, or one-byte blocks).
	if c.SetIndexBits == 0 {
		errs = append(errs, errors.New("config: set-index bits (-s) must be positive"))
	}
	if c.BlockOffsetBits == 0 {
		errs = append(errs, errors.New("config: block-offset bits (-b) must be positive"))
	}
	if c.SetIndexBits+c.BlockOffsetBits >= 32 {
		errs = append(errs, fmt.Errorf("config: s+b must be less than 32 bits, got s=%d b=%d", c.SetIndexBits, c.BlockOffsetBits))
	}
	if c.CycleCeiling < 0 {
		errs = append(errs, fmt.Errorf("config: CycleCeiling must be non-negative, got %d", c.CycleCeiling))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.NumCores == 0 {
		c.NumCores = DefaultNumCores
	}
	if c.CycleCeiling == 0 {
		c.CycleCeiling = DefaultCycleCeiling
	}
	return nil
}

// BlockSize returns the block size in bytes implied by BlockOffsetBits.
func (c Config) BlockSize() int {
	return 1 << c.BlockOffsetBits
}

// NumSets returns the number of sets implied by SetIndexBits.
func (c Config) NumSets() int {
	return 1 << c.SetIndexBits
}
