// Package config defines the scheduling configuration.
package config

import (
	"fmt"
	"log"
)

// Algorithm selects the forward-pass variant.
type Algorithm string

const (
	AlgorithmParallelSGS    Algorithm = "parallel_sgs"
	AlgorithmBoundedRollout Algorithm = "bounded_rollout"
	AlgorithmCriticalPath   Algorithm = "critical_path"
)

// Strategy selects the per-tick prioritization of eligible tasks.
type Strategy string

const (
	StrategyWeighted      Strategy = "weighted"
	StrategyCRFirst       Strategy = "cr_first"
	StrategyPriorityFirst Strategy = "priority_first"
	StrategyATC           Strategy = "atc"
)

// Verbosity levels for the injected log sink.
const (
	VerbositySilent  = 0
	VerbosityChanges = 1
	VerbosityChecks  = 2
	VerbosityDebug   = 3
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// SchedulingConfig controls prioritization and algorithm selection.
type SchedulingConfig struct {
	Algorithm Algorithm `yaml:"algorithm"`
	Strategy  Strategy  `yaml:"strategy"`

	// Weights for the weighted strategy.
	CRWeight       float64 `yaml:"cr_weight"`
	PriorityWeight float64 `yaml:"priority_weight"`

	// DefaultPriority is used for tasks without an explicit priority (0-100).
	DefaultPriority int `yaml:"default_priority"`

	// Default CR for tasks without deadlines: max(maxCR*multiplier, floor).
	DefaultCRMultiplier float64 `yaml:"default_cr_multiplier"`
	DefaultCRFloor      float64 `yaml:"default_cr_floor"`

	// ATC parameters.
	ATCK                        float64 `yaml:"atc_k"`
	ATCDefaultUrgencyMultiplier float64 `yaml:"atc_default_urgency_multiplier"`
	ATCDefaultUrgencyFloor      float64 `yaml:"atc_default_urgency_floor"`

	// Rollout is consulted only when Algorithm is bounded_rollout.
	Rollout RolloutConfig `yaml:"rollout"`

	// CriticalPath is consulted only when Algorithm is critical_path.
	CriticalPath CriticalPathConfig `yaml:"critical_path"`

	// Verbosity gates what goes to the log sink: 0=silent, 1=changes,
	// 2=checks, 3=debug.
	Verbosity int `yaml:"verbosity"`

	// Logger receives scheduling traces. Nil means silent regardless of
	// Verbosity.
	Logger *log.Logger `yaml:"-"`
}

// DefaultSchedulingConfig returns the default configuration.
func DefaultSchedulingConfig() *SchedulingConfig {
	return &SchedulingConfig{
		Algorithm:                   AlgorithmParallelSGS,
		Strategy:                    StrategyWeighted,
		CRWeight:                    10.0,
		PriorityWeight:              1.0,
		DefaultPriority:             50,
		DefaultCRMultiplier:         2.0,
		DefaultCRFloor:              10.0,
		ATCK:                        2.0,
		ATCDefaultUrgencyMultiplier: 1.0,
		ATCDefaultUrgencyFloor:      0.3,
		Rollout:                     DefaultRolloutConfig(),
		CriticalPath:                DefaultCriticalPathConfig(),
	}
}

// Validate checks the configuration for contradictions.
func (c *SchedulingConfig) Validate() error {
	switch c.Algorithm {
	case AlgorithmParallelSGS, AlgorithmBoundedRollout, AlgorithmCriticalPath:
	default:
		return &ConfigError{Field: "algorithm", Reason: fmt.Sprintf("unknown algorithm %q", c.Algorithm)}
	}
	switch c.Strategy {
	case StrategyWeighted, StrategyCRFirst, StrategyPriorityFirst, StrategyATC:
	default:
		return &ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	if c.DefaultPriority < 0 || c.DefaultPriority > 100 {
		return &ConfigError{Field: "default_priority", Reason: "must be in 0..100"}
	}
	if c.Strategy == StrategyATC && c.ATCK <= 0 {
		return &ConfigError{Field: "atc_k", Reason: "must be positive for the atc strategy"}
	}
	if c.Algorithm == AlgorithmBoundedRollout {
		if err := c.Rollout.Validate(); err != nil {
			return err
		}
	}
	if c.Algorithm == AlgorithmCriticalPath {
		if err := c.CriticalPath.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Logf writes to the configured sink when the verbosity level is enabled.
func (c *SchedulingConfig) Logf(level int, format string, args ...interface{}) {
	if c.Logger == nil || c.Verbosity < level {
		return
	}
	c.Logger.Printf(format, args...)
}

// RolloutConfig controls the bounded rollout decision gate.
type RolloutConfig struct {
	// PriorityThreshold: tasks below this priority count as relaxed. A task
	// is a rollout candidate when it is relaxed by priority or by CR.
	PriorityThreshold int `yaml:"priority_threshold"`
	// MinPriorityGap: a competitor whose priority is at least this much
	// higher than the candidate's counts as more urgent.
	MinPriorityGap int `yaml:"min_priority_gap"`
	// CRRelaxedThreshold: tasks with CR above this count as relaxed.
	CRRelaxedThreshold float64 `yaml:"cr_relaxed_threshold"`
	// MinCRUrgencyGap: a competitor whose CR is at least this much tighter
	// also counts as more urgent, provided its priority is no more than
	// MinPriorityGap below the candidate's.
	MinCRUrgencyGap float64 `yaml:"min_cr_urgency_gap"`
	// MaxHorizonDays caps the simulation depth. Zero means uncapped.
	MaxHorizonDays int `yaml:"max_horizon_days"`
}

// DefaultRolloutConfig returns the default rollout configuration.
func DefaultRolloutConfig() RolloutConfig {
	return RolloutConfig{
		PriorityThreshold:  70,
		MinPriorityGap:     20,
		CRRelaxedThreshold: 5.0,
		MinCRUrgencyGap:    3.0,
		MaxHorizonDays:     30,
	}
}

// Validate checks the rollout configuration.
func (c *RolloutConfig) Validate() error {
	if c.MaxHorizonDays < 0 {
		return &ConfigError{Field: "rollout.max_horizon_days", Reason: "must be non-negative"}
	}
	if c.MinPriorityGap < 0 {
		return &ConfigError{Field: "rollout.min_priority_gap", Reason: "must be non-negative"}
	}
	return nil
}

// CriticalPathConfig controls the target-driven scheduler.
type CriticalPathConfig struct {
	// K is the urgency decay parameter (higher tolerates more slack).
	K float64 `yaml:"k"`
	// NoDeadlineUrgencyMultiplier scales the minimum deadline urgency for
	// targets without deadlines.
	NoDeadlineUrgencyMultiplier float64 `yaml:"no_deadline_urgency_multiplier"`
	// UrgencyFloor is the minimum urgency for any target with positive slack.
	UrgencyFloor float64 `yaml:"urgency_floor"`
	// RolloutEnabled turns on the competing-target resource rollout.
	RolloutEnabled bool `yaml:"rollout_enabled"`
	// RolloutScoreRatioThreshold: a competitor must score above
	// current*ratio to trigger rollout.
	RolloutScoreRatioThreshold float64 `yaml:"rollout_score_ratio_threshold"`
	// RolloutMaxHorizonDays caps the rollout simulation. Zero means uncapped.
	RolloutMaxHorizonDays int `yaml:"rollout_max_horizon_days"`
}

// DefaultCriticalPathConfig returns the default critical-path configuration.
func DefaultCriticalPathConfig() CriticalPathConfig {
	return CriticalPathConfig{
		K:                           2.0,
		NoDeadlineUrgencyMultiplier: 0.5,
		UrgencyFloor:                0.01,
		RolloutEnabled:              true,
		RolloutScoreRatioThreshold:  1.0,
		RolloutMaxHorizonDays:       30,
	}
}

// Validate checks the critical-path configuration.
func (c *CriticalPathConfig) Validate() error {
	if c.K <= 0 {
		return &ConfigError{Field: "critical_path.k", Reason: "must be positive"}
	}
	if c.UrgencyFloor < 0 {
		return &ConfigError{Field: "critical_path.urgency_floor", Reason: "must be non-negative"}
	}
	if c.RolloutScoreRatioThreshold < 0 {
		return &ConfigError{Field: "critical_path.rollout_score_ratio_threshold", Reason: "must be non-negative"}
	}
	return nil
}
