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

// GosecTool invokes github.com/securego/gosec's CLI for Go source trees.
type GosecTool struct{}

func NewGosecTool() *GosecTool { return &GosecTool{} }

func (t *GosecTool) Name() string { return "gosec" }

func (t *GosecTool) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "gosec", "-version")
	return cmd.Run()
}

func (t *GosecTool) Install(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "go", "install", "github.com/securego/gosec/v2/cmd/gosec@latest")
	return cmd.Run()
}

// gosecReport mirrors the subset of `gosec -fmt=json` output this tool
// consumes.
type gosecReport struct {
	Issues []gosecIssue `json:"Issues"`
}

type gosecIssue struct {
	Severity   string `json:"severity"`
	Confidence string `json:"confidence"`
	RuleID     string `json:"rule_id"`
	Details    string `json:"details"`
	File       string `json:"file"`
	Line       string `json:"line"`
	Cwe        struct {
		ID string `json:"ID"`
	} `json:"cwe"`
}

func (t *GosecTool) Run(ctx context.Context, workDir string, settings config.ScannerSettings) (map[string][]manifest.Finding, error) {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-fmt=json", "-quiet"}
	for _, pattern := range settings.ExcludePatterns {
		args = append(args, "-exclude-dir", strings.TrimSuffix(pattern, "/"))
	}
	args = append(args, "./...")

	cmd := exec.CommandContext(runCtx, "gosec", args...)
	cmd.Dir = workDir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		return nil, mferrors.Wrap(mferrors.KindScannerTimeout, "gosec exceeded its timeout", runCtx.Err())
	}
	// gosec exits non-zero when it finds issues; that is not a run
	// failure as long as it produced well-formed JSON.
	if stdout.Len() == 0 && runErr != nil {
		return nil, mferrors.Wrap(mferrors.KindScannerUnavailable, "gosec produced no output", runErr)
	}

	var report gosecReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, mferrors.Wrap(mferrors.KindMalformedResponse, "parse gosec JSON output", err)
	}

	findings := make(map[string][]manifest.Finding)
	for _, issue := range report.Issues {
		path := relativize(issue.File, workDir)
		if !withinWhitelist(path, settings.ExcludePatterns) {
			continue
		}
		conf := confidenceToFloat(issue.Confidence)
		start, end := parseLineRange(issue.Line)
		findings[path] = append(findings[path], manifest.Finding{
			ScannerName: t.Name(),
			RuleID:      issue.RuleID,
			Severity:    NormalizeSeverity(issue.Severity),
			Message:     issue.Details,
			LineStart:   start,
			LineEnd:     end,
			Confidence:  &conf,
			CWE:         cweRef(issue.Cwe.ID),
		})
	}
	return findings, nil
}

func relativize(path, workDir string) string {
	rel := strings.TrimPrefix(path, workDir)
	return strings.TrimPrefix(rel, "/")
}

func confidenceToFloat(level string) float64 {
	switch strings.ToUpper(level) {
	case "HIGH":
		return 0.9
	case "MEDIUM":
		return 0.6
	default:
		return 0.3
	}
}

func cweRef(id string) string {
	if id == "" {
		return ""
	}
	return "CWE-" + id
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// parseLineRange splits gosec's "10-15" or plain "10" line field.
func parseLineRange(s string) (start, end int) {
	parts := strings.SplitN(s, "-", 2)
	start = atoiSafe(parts[0])
	if len(parts) == 2 {
		end = atoiSafe(parts[1])
	} else {
		end = start
	}
	return start, end
}
