// Package manifest implements the Manifest Store (C1): the single JSON
// document that accumulates fields across phases, plus the merge semantics
// that keep it monotonic.
package manifest

import "time"

// Category enumerates the file-purpose classification domain set by the
// LLM Analyzer (C5).
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryDataProcessing Category = "data-processing"
	CategoryAPI            Category = "api"
	CategoryFrontend       Category = "frontend"
	CategoryConfig         Category = "config"
	CategoryTest           Category = "test"
	CategoryBuild          Category = "build"
	CategoryDocumentation  Category = "documentation"
	CategoryOther          Category = "other"
)

// ValidCategories is the canonical category domain from spec §3.
var ValidCategories = map[Category]bool{
	CategoryAuthentication: true,
	CategoryDataProcessing: true,
	CategoryAPI:            true,
	CategoryFrontend:       true,
	CategoryConfig:         true,
	CategoryTest:           true,
	CategoryBuild:          true,
	CategoryDocumentation:  true,
	CategoryOther:          true,
}

// SecurityRelevance enumerates the LLM-assessed security sensitivity of a
// file.
type SecurityRelevance string

const (
	RelevanceHigh   SecurityRelevance = "high"
	RelevanceMedium SecurityRelevance = "medium"
	RelevanceLow    SecurityRelevance = "low"
)

// Severity enumerates the canonical vulnerability severity set that every
// scanner's native taxonomy is normalized onto.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Priority enumerates the risk priority tiers assigned by the Risk Scorer
// (C7).
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityInfo     Priority = "INFO"
)

// Repository carries provenance identity pinned at first analysis.
type Repository struct {
	URL           string    `json:"url"`
	DefaultBranch string    `json:"default_branch"`
	CommitSHA     string    `json:"commit_sha"`
	FirstAnalyzed time.Time `json:"first_analyzed"`
}

// TokenStats is the output of the Token Accountant (C3) for one file.
type TokenStats struct {
	ContentTokens           int     `json:"content_tokens"`
	PromptTokens            int     `json:"prompt_tokens"`
	EstimatedResponseTokens int     `json:"estimated_response_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	EstimatedCost           float64 `json:"estimated_cost"`
	Approximate             bool    `json:"approximate,omitempty"`
}

// Finding is one normalized vulnerability report from a scanner (C6).
type Finding struct {
	ScannerName    string   `json:"scanner_name"`
	RuleID         string   `json:"rule_id"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	LineStart      int      `json:"line_start"`
	LineEnd        int      `json:"line_end"`
	Confidence     *float64 `json:"confidence,omitempty"`
	CWE            string   `json:"cwe,omitempty"`
	FixSuggestion  string   `json:"fix_suggestion,omitempty"`
	References     []string `json:"references,omitempty"`
}

// RiskAssessment is the score/priority/SLA triple produced by the Risk
// Scorer (C7).
type RiskAssessment struct {
	RiskScore  float64            `json:"risk_score"`
	Priority   Priority           `json:"priority"`
	SLAHours   int                `json:"sla_hours"`
	Components map[string]float64 `json:"components"`
	Reasoning  string             `json:"reasoning"`
}

// FileEntry is one record per analyzed file. Every field beyond Path,
// BlobID, Size and Extension is optional and accumulates across phases —
// see the monotonic enrichment invariant in spec §3.
type FileEntry struct {
	Path      string `json:"path"`
	BlobID    string `json:"blob_id"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`

	Purpose           string            `json:"purpose,omitempty"`
	Category          Category          `json:"category,omitempty"`
	Confidence        *float64          `json:"confidence,omitempty"`
	SecurityRelevance SecurityRelevance `json:"security_relevance,omitempty"`
	Reasoning         string            `json:"reasoning,omitempty"`
	Provider          string            `json:"provider,omitempty"`
	Model             string            `json:"model,omitempty"`

	TokenStats *TokenStats `json:"token_stats,omitempty"`

	// Vulnerabilities is nil when the file has not been scanned and an
	// (possibly empty) non-nil slice once it has — see spec §3's
	// "scanned, none found" vs "not scanned" invariant.
	Vulnerabilities []Finding `json:"vulnerabilities"`

	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
}

// HasPurpose reports whether C5 has already classified this entry.
func (f *FileEntry) HasPurpose() bool {
	return f != nil && f.Purpose != ""
}

// Scanned reports whether C6 has attached vulnerability results (possibly
// empty) to this entry.
func (f *FileEntry) Scanned() bool {
	return f != nil && f.Vulnerabilities != nil
}

// Manifest is the single document describing a repository analysis.
type Manifest struct {
	Repository Repository  `json:"repository"`
	Files      []FileEntry `json:"files"`
}

// IndexByPath returns a path->index map for O(1) entry lookup, preserving
// the invariant that paths are unique within Files.
func (m *Manifest) IndexByPath() map[string]int {
	idx := make(map[string]int, len(m.Files))
	for i, f := range m.Files {
		idx[f.Path] = i
	}
	return idx
}

// Get returns a pointer to the entry for path, or nil if absent.
func (m *Manifest) Get(path string) *FileEntry {
	for i := range m.Files {
		if m.Files[i].Path == path {
			return &m.Files[i]
		}
	}
	return nil
}
