package config

import (
	"fmt"
	"math"

	"github.com/rohankatakam/manifestaudit/internal/mferrors"
)

const weightTolerance = 1e-6

// ValidationResult accumulates validation errors the way the teacher's
// internal/config/validator.go does, so the controller can report every
// problem at once instead of failing on the first one.
type ValidationResult struct {
	Errors []string
}

func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate checks the full configuration document and returns a
// *mferrors.Error of KindConfigInvalid summarizing every problem found, or
// nil if the configuration is valid. This must run before any phase starts
// — spec's "Weight validation" testable property.
func (c *Config) Validate() error {
	result := &ValidationResult{}

	c.validateRiskScoring(result)
	c.validateAnalysis(result)
	c.validateLLM(result)

	if !result.HasErrors() {
		return nil
	}

	msg := "configuration is invalid:"
	for _, e := range result.Errors {
		msg += "\n  - " + e
	}
	return mferrors.New(mferrors.KindConfigInvalid, msg)
}

func (c *Config) validateRiskScoring(r *ValidationResult) {
	rs := c.RiskScoring
	sum := rs.WeightVulnerability + rs.WeightCategory + rs.WeightRelevance
	if math.Abs(sum-1.0) > weightTolerance {
		r.AddError("risk_scoring weights must sum to 1.0 (±%g), got %.6f", weightTolerance, sum)
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"weight_vulnerability", rs.WeightVulnerability},
		{"weight_category", rs.WeightCategory},
		{"weight_relevance", rs.WeightRelevance},
	} {
		if w.value < 0 {
			r.AddError("risk_scoring.%s must be non-negative, got %.6f", w.name, w.value)
		}
	}

	if len(rs.PriorityThresholds) == 0 {
		r.AddError("risk_scoring.priority_thresholds must not be empty")
	}
	for name, pt := range rs.PriorityThresholds {
		if pt.SLAHours <= 0 {
			r.AddError("risk_scoring.priority_thresholds[%s].sla_hours must be positive", name)
		}
	}
}

func (c *Config) validateAnalysis(r *ValidationResult) {
	if c.Analysis.MaxFileSize <= 0 {
		r.AddError("analysis.max_file_size must be positive")
	}
	if c.Analysis.BatchSize <= 0 {
		r.AddError("analysis.batch_size must be positive")
	}
}

func (c *Config) validateLLM(r *ValidationResult) {
	if c.LLM.DefaultProvider == "" {
		r.AddError("llm.default_provider must be set")
		return
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		r.AddError("llm.default_provider %q has no matching entry under llm.providers", c.LLM.DefaultProvider)
	}
}
