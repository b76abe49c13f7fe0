// Package risk implements the Configurable Risk Scorer (C7): a pure,
// deterministic function from a FileEntry's classification and scan
// findings to a risk_score, priority, and SLA. Grounded on the teacher's
// internal/risk/calculator.go weighted-summation structure, reworked for
// vulnerability/category/relevance inputs instead of blast-radius/churn.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
)

// Calculator scores one FileEntry at a time. It holds no mutable state;
// every call with the same inputs produces the same output.
type Calculator struct {
	cfg config.RiskScoringConfig
}

// NewCalculator builds a Calculator from the loaded risk scoring
// configuration. Callers should run Config.Validate first; Calculator
// does not re-validate weight sums.
func NewCalculator(cfg config.RiskScoringConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Score computes the RiskAssessment for entry. An entry without a Category
// is scored as "other", one without a SecurityRelevance gets
// defaultRelevanceScore, and one without findings (unscanned or clean)
// contributes 0 for vulnerabilities. Score does not mutate entry.
func (c *Calculator) Score(entry *manifest.FileEntry) manifest.RiskAssessment {
	vulnComponent := c.vulnerabilityComponent(entry.Vulnerabilities)
	categoryComponent := c.categoryComponent(entry.Category)
	relevanceComponent := c.relevanceComponent(entry.SecurityRelevance)

	weighted := c.cfg.WeightVulnerability*vulnComponent +
		c.cfg.WeightCategory*categoryComponent +
		c.cfg.WeightRelevance*relevanceComponent

	score := clamp(weighted, 0, 10)
	priority, slaHours := c.priorityFor(score)

	return manifest.RiskAssessment{
		RiskScore: round2(score),
		Priority:  priority,
		SLAHours:  slaHours,
		Components: map[string]float64{
			"vulnerability": round2(vulnComponent),
			"category":      round2(categoryComponent),
			"relevance":     round2(relevanceComponent),
		},
		Reasoning: c.reason(entry, vulnComponent, categoryComponent, relevanceComponent, priority),
	}
}

// vulnerabilityComponent is the highest severity score found among the
// file's findings, or 0 when unscanned or clean.
func (c *Calculator) vulnerabilityComponent(findings []manifest.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	best := 0.0
	for _, f := range findings {
		if s, ok := c.cfg.SeverityScores[string(f.Severity)]; ok && s > best {
			best = s
		}
	}
	return best
}

func (c *Calculator) categoryComponent(category manifest.Category) float64 {
	if s, ok := c.cfg.CategoryScores[string(category)]; ok {
		return s
	}
	return c.cfg.CategoryScores["other"]
}

// defaultRelevanceScore is used when an entry has no (or an unknown)
// security relevance.
const defaultRelevanceScore = 2

func (c *Calculator) relevanceComponent(relevance manifest.SecurityRelevance) float64 {
	if s, ok := c.cfg.RelevanceScores[string(relevance)]; ok {
		return s
	}
	return defaultRelevanceScore
}

// priorityFor picks the highest threshold the score clears, breaking ties
// by iterating thresholds from highest to lowest.
func (c *Calculator) priorityFor(score float64) (manifest.Priority, int) {
	type tier struct {
		name      string
		threshold float64
		slaHours  int
	}
	tiers := make([]tier, 0, len(c.cfg.PriorityThresholds))
	for name, t := range c.cfg.PriorityThresholds {
		tiers = append(tiers, tier{name, t.Threshold, t.SLAHours})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].threshold > tiers[j].threshold })

	for _, t := range tiers {
		if score >= t.threshold {
			return manifest.Priority(t.name), t.slaHours
		}
	}
	return manifest.PriorityInfo, 0
}

func (c *Calculator) reason(entry *manifest.FileEntry, vuln, category, relevance float64, priority manifest.Priority) string {
	var parts []string
	if vuln > 0 {
		worst := worstSeverity(entry.Vulnerabilities)
		parts = append(parts, fmt.Sprintf("%s severity finding(s)", worst))
	}
	if entry.Category != "" {
		parts = append(parts, fmt.Sprintf("category=%s", entry.Category))
	}
	if entry.SecurityRelevance != "" {
		parts = append(parts, fmt.Sprintf("security_relevance=%s", entry.SecurityRelevance))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("no classification or scan data available, defaulting to %s", priority)
	}
	return fmt.Sprintf("%s -> %s priority (%s)", strings.Join(parts, ", "), priority, scoreBand(priority))
}

func scoreBand(p manifest.Priority) string {
	switch p {
	case manifest.PriorityCritical:
		return "immediate remediation expected"
	case manifest.PriorityHigh:
		return "remediate within SLA"
	case manifest.PriorityMedium:
		return "scheduled remediation"
	case manifest.PriorityLow:
		return "backlog"
	default:
		return "informational"
	}
}

func worstSeverity(findings []manifest.Finding) manifest.Severity {
	order := map[manifest.Severity]int{
		manifest.SeverityCritical: 4,
		manifest.SeverityHigh:     3,
		manifest.SeverityMedium:   2,
		manifest.SeverityLow:      1,
		manifest.SeverityInfo:     0,
	}
	worst := manifest.SeverityInfo
	best := -1
	for _, f := range findings {
		if rank, ok := order[f.Severity]; ok && rank > best {
			best = rank
			worst = f.Severity
		}
	}
	return worst
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
