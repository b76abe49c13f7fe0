package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
)

// SemgrepTool invokes semgrep's CLI with the "auto" ruleset.
type SemgrepTool struct{}

func NewSemgrepTool() *SemgrepTool { return &SemgrepTool{} }

func (t *SemgrepTool) Name() string { return "semgrep" }

func (t *SemgrepTool) CheckInstalled(ctx context.Context) error {
	return exec.CommandContext(ctx, "semgrep", "--version").Run()
}

func (t *SemgrepTool) Install(ctx context.Context) error {
	return exec.CommandContext(ctx, "python3", "-m", "pip", "install", "--user", "semgrep").Run()
}

type semgrepReport struct {
	Results []semgrepResult `json:"results"`
}

type semgrepResult struct {
	Path  string `json:"path"`
	Start struct {
		Line int `json:"line"`
	} `json:"start"`
	End struct {
		Line int `json:"line"`
	} `json:"end"`
	CheckID string `json:"check_id"`
	Extra   struct {
		Message  string  `json:"message"`
		Severity string  `json:"severity"`
		Metadata struct {
			Confidence string   `json:"confidence"`
			CWE        []string `json:"cwe"`
			References []string `json:"references"`
		} `json:"metadata"`
	} `json:"extra"`
}

func (t *SemgrepTool) Run(ctx context.Context, workDir string, settings config.ScannerSettings) (map[string][]manifest.Finding, error) {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"--config=auto", "--json", "--quiet"}
	for _, pattern := range settings.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, ".")

	cmd := exec.CommandContext(runCtx, "semgrep", args...)
	cmd.Dir = workDir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		return nil, mferrors.Wrap(mferrors.KindScannerTimeout, "semgrep exceeded its timeout", runCtx.Err())
	}
	if stdout.Len() == 0 && runErr != nil {
		return nil, mferrors.Wrap(mferrors.KindScannerUnavailable, "semgrep produced no output", runErr)
	}

	var report semgrepReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, mferrors.Wrap(mferrors.KindMalformedResponse, "parse semgrep JSON output", err)
	}

	findings := make(map[string][]manifest.Finding)
	for _, res := range report.Results {
		path := strings.TrimPrefix(strings.TrimPrefix(res.Path, "./"), "/")
		if !withinWhitelist(path, settings.ExcludePatterns) {
			continue
		}

		var cwe string
		if len(res.Extra.Metadata.CWE) > 0 {
			cwe = res.Extra.Metadata.CWE[0]
		}
		var conf *float64
		if f, ok := semgrepConfidence(res.Extra.Metadata.Confidence); ok {
			conf = &f
		}

		findings[path] = append(findings[path], manifest.Finding{
			ScannerName: t.Name(),
			RuleID:      res.CheckID,
			Severity:    NormalizeSeverity(res.Extra.Severity),
			Message:     res.Extra.Message,
			LineStart:   res.Start.Line,
			LineEnd:     res.End.Line,
			Confidence:  conf,
			CWE:         cwe,
			References:  res.Extra.Metadata.References,
		})
	}
	return findings, nil
}

func semgrepConfidence(level string) (float64, bool) {
	switch strings.ToUpper(level) {
	case "HIGH":
		return 0.9, true
	case "MEDIUM":
		return 0.6, true
	case "LOW":
		return 0.3, true
	default:
		return 0, false
	}
}
