package risk

import (
	"testing"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func testConfig() config.RiskScoringConfig {
	return config.Default().RiskScoring
}

func TestScore_UnscannedUnclassified(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{Path: "main.go"}

	assessment := c.Score(entry)

	assert.Equal(t, 1.55, assessment.RiskScore) // 0.35*3 ("other") + 0.25*2 (default relevance)
	assert.Equal(t, manifest.PriorityInfo, assessment.Priority)
}

func TestScore_HighSeverityAuthFileIsCritical(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{
		Path:              "internal/auth/login.go",
		Category:          manifest.CategoryAuthentication,
		SecurityRelevance: manifest.RelevanceHigh,
		Vulnerabilities: []manifest.Finding{
			{ScannerName: "gosec", Severity: manifest.SeverityCritical, Message: "hardcoded credential"},
		},
	}

	assessment := c.Score(entry)

	assert.Equal(t, manifest.PriorityCritical, assessment.Priority)
	assert.Equal(t, 4, assessment.SLAHours)
	assert.InDelta(t, 10.0, assessment.RiskScore, 1e-9)
}

func TestScore_CleanDocumentationFileIsLowRisk(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{
		Path:              "README.md",
		Category:          manifest.CategoryDocumentation,
		SecurityRelevance: manifest.RelevanceLow,
		Vulnerabilities:   []manifest.Finding{},
	}

	assessment := c.Score(entry)

	assert.Less(t, assessment.RiskScore, 4.0)
	assert.NotEqual(t, manifest.PriorityCritical, assessment.Priority)
}

func TestScore_ScoreIsClampedToTen(t *testing.T) {
	cfg := testConfig()
	cfg.WeightVulnerability = 1
	cfg.WeightCategory = 1
	cfg.WeightRelevance = 1
	c := NewCalculator(cfg)

	entry := &manifest.FileEntry{
		Category:          manifest.CategoryAuthentication,
		SecurityRelevance: manifest.RelevanceHigh,
		Vulnerabilities: []manifest.Finding{
			{ScannerName: "semgrep", Severity: manifest.SeverityCritical},
		},
	}

	assessment := c.Score(entry)
	assert.LessOrEqual(t, assessment.RiskScore, 10.0)
}

func TestScore_WorstSeverityWins(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{
		Category: manifest.CategoryAPI,
		Vulnerabilities: []manifest.Finding{
			{ScannerName: "gosec", Severity: manifest.SeverityLow},
			{ScannerName: "semgrep", Severity: manifest.SeverityHigh},
			{ScannerName: "gosec", Severity: manifest.SeverityMedium},
		},
	}

	assessment := c.Score(entry)
	assert.Equal(t, 7.0, assessment.Components["vulnerability"])
}

func TestScore_UnknownCategoryFallsBackToOther(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{Category: manifest.Category("unheard-of")}

	assessment := c.Score(entry)
	assert.Equal(t, testConfig().CategoryScores["other"], assessment.Components["category"])
}

func TestScore_ReasoningMentionsPriority(t *testing.T) {
	c := NewCalculator(testConfig())
	entry := &manifest.FileEntry{
		Category:          manifest.CategoryAPI,
		SecurityRelevance: manifest.RelevanceMedium,
	}

	assessment := c.Score(entry)
	assert.Contains(t, assessment.Reasoning, string(assessment.Priority))
}
