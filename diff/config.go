// Package diff is the workbook diff engine: it aligns grids, classifies
// cell and formula changes, diffs embedded queries and model measures, and
// emits a deterministic op stream through a sink.
package diff

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LimitBehavior is the policy applied when a resource limit fires.
type LimitBehavior uint8

const (
	// FallBack degrades to the simple positional differ and marks the
	// report incomplete.
	FallBack LimitBehavior = iota
	// ReturnError short-circuits the advanced pass entirely, producing an
	// incomplete report with a warning.
	ReturnError
)

// Config tunes the diff pipeline. The zero value is not useful; start from
// DefaultConfig or one of the presets.
type Config struct {
	// MaxMemoryMB is the soft budget for advanced alignment structures.
	// Zero means unlimited.
	MaxMemoryMB uint32
	// TimeoutSeconds bounds one diff run. Zero means no deadline.
	TimeoutSeconds uint32

	EnableFormulaSemanticDiff bool

	RareThreshold           uint32
	LowInfoThreshold        uint32
	SmallGapThreshold       uint32
	RecursiveAlignThreshold uint32

	// MaxAlignRows and MaxAlignCols cap the advanced alignment; larger
	// grids fall back to positional diff.
	MaxAlignRows uint32
	MaxAlignCols uint32

	OnLimit LimitBehavior

	// Workers bounds sheet-level parallelism. Zero or one disables
	// fan-out. The emitted op sequence is identical for any value.
	Workers int

	// Progress receives advisory (phase, fraction) callbacks. May be nil.
	Progress func(phase string, fraction float64)
}

// DefaultConfig is the balanced preset.
func DefaultConfig() *Config {
	return &Config{
		EnableFormulaSemanticDiff: true,
		RareThreshold:             2,
		LowInfoThreshold:          1,
		SmallGapThreshold:         16,
		RecursiveAlignThreshold:   128,
		MaxAlignRows:              1_000_000,
		MaxAlignCols:              16_384,
	}
}

// FastestConfig disables the semantic passes for raw speed.
func FastestConfig() *Config {
	c := DefaultConfig()
	c.EnableFormulaSemanticDiff = false
	c.SmallGapThreshold = 8
	c.RecursiveAlignThreshold = 64
	return c
}

// BalancedConfig is an alias of the default.
func BalancedConfig() *Config {
	return DefaultConfig()
}

// MostPreciseConfig widens the small-gap and recursive-align thresholds;
// the other settings keep their default values.
func MostPreciseConfig() *Config {
	c := DefaultConfig()
	c.SmallGapThreshold = 64
	c.RecursiveAlignThreshold = 512
	return c
}

// fileConfig is the YAML shape of --config files.
type fileConfig struct {
	MaxMemoryMB             *uint32 `yaml:"max_memory_mb"`
	TimeoutSeconds          *uint32 `yaml:"timeout_seconds"`
	FormulaSemanticDiff     *bool   `yaml:"formula_semantic_diff"`
	RareThreshold           *uint32 `yaml:"rare_threshold"`
	LowInfoThreshold        *uint32 `yaml:"low_info_threshold"`
	SmallGapThreshold       *uint32 `yaml:"small_gap_threshold"`
	RecursiveAlignThreshold *uint32 `yaml:"recursive_align_threshold"`
	MaxAlignRows            *uint32 `yaml:"max_align_rows"`
	MaxAlignCols            *uint32 `yaml:"max_align_cols"`
	OnLimit                 *string `yaml:"on_limit"`
	Workers                 *int    `yaml:"workers"`
}

// ApplyConfigFile overlays a YAML config file onto c. Only keys present in
// the file are touched.
func ApplyConfigFile(c *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if fc.MaxMemoryMB != nil {
		c.MaxMemoryMB = *fc.MaxMemoryMB
	}
	if fc.TimeoutSeconds != nil {
		c.TimeoutSeconds = *fc.TimeoutSeconds
	}
	if fc.FormulaSemanticDiff != nil {
		c.EnableFormulaSemanticDiff = *fc.FormulaSemanticDiff
	}
	if fc.RareThreshold != nil {
		c.RareThreshold = *fc.RareThreshold
	}
	if fc.LowInfoThreshold != nil {
		c.LowInfoThreshold = *fc.LowInfoThreshold
	}
	if fc.SmallGapThreshold != nil {
		c.SmallGapThreshold = *fc.SmallGapThreshold
	}
	if fc.RecursiveAlignThreshold != nil {
		c.RecursiveAlignThreshold = *fc.RecursiveAlignThreshold
	}
	if fc.MaxAlignRows != nil {
		c.MaxAlignRows = *fc.MaxAlignRows
	}
	if fc.MaxAlignCols != nil {
		c.MaxAlignCols = *fc.MaxAlignCols
	}
	if fc.OnLimit != nil {
		switch *fc.OnLimit {
		case "fallback":
			c.OnLimit = FallBack
		case "error":
			c.OnLimit = ReturnError
		default:
			return fmt.Errorf("unknown on_limit value %q", *fc.OnLimit)
		}
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	return nil
}
