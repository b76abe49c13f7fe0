// Package scanner implements the Vulnerability Scanner Orchestrator (C6):
// acquiring a scratch working tree, invoking heterogeneous external
// scanners, normalizing their native output onto the canonical Finding
// severity taxonomy, and attaching results to manifest entries by path.
// Grounded on the teacher's subprocess-invocation idiom and the pack's
// Trivy-JSON agent for output normalization style.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
)

// Tool is one concrete scanner binary wired into the Runner.
type Tool interface {
	// Name identifies the tool for configuration lookup and logging.
	Name() string

	// CheckInstalled reports whether the binary is present and usable. A
	// non-nil error is treated as "not installed", never fatal on its own.
	CheckInstalled(ctx context.Context) error

	// Install attempts to provision the tool via its standard packaging
	// channel. Only called when auto_install is enabled.
	Install(ctx context.Context) error

	// Run invokes the tool against workDir and returns normalized
	// findings keyed by path relative to workDir.
	Run(ctx context.Context, workDir string, settings config.ScannerSettings) (map[string][]manifest.Finding, error)
}

// Runner drives C6.
type Runner struct {
	source  reposource.RepoSource
	tools   map[string]Tool
	logger  *slog.Logger
	scratch string
}

// NewRunner builds a Runner. scratchRoot is the parent directory under
// which per-invocation scratch trees are created (default: os.TempDir()).
func NewRunner(source reposource.RepoSource, tools map[string]Tool, logger *slog.Logger, scratchRoot string) *Runner {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	return &Runner{source: source, tools: tools, logger: logger.With("component", "scanner"), scratch: scratchRoot}
}

// ScanResult is what Run returns: findings attached per path, plus which
// scanners were skipped (not fatal) and why.
type ScanResult struct {
	Findings map[string][]manifest.Finding
	Skipped  map[string]string

	// ExcludePatterns is the union of exclude_patterns across every
	// scanner that actually ran this invocation. It defines scan scope
	// for Attach: a path matching any of these was never in front of a
	// scanner, so it must not be defaulted to "scanned, no findings".
	ExcludePatterns []string
}

// Run executes every enabled scanner named in cfg against repoURL at
// commitID, in the order scanners appear in requested. It acquires one
// scratch working tree shared by all scanners and deletes it on every
// exit path.
func (r *Runner) Run(ctx context.Context, repoURL, commitID string, requested []string, cfg config.VulnerabilityScanConfig) (*ScanResult, error) {
	workDir, err := os.MkdirTemp(r.scratch, "mfaudit-scan-*")
	if err != nil {
		return nil, mferrors.Wrap(mferrors.KindScannerUnavailable, "create scratch directory", err)
	}
	defer os.RemoveAll(workDir)

	if err := r.source.Clone(ctx, repoURL, commitID, workDir); err != nil {
		return nil, err
	}

	result := &ScanResult{
		Findings: make(map[string][]manifest.Finding),
		Skipped:  make(map[string]string),
	}

	for _, name := range requested {
		if ctx.Err() != nil {
			return result, mferrors.Wrap(mferrors.KindCancelled, "scan cancelled", ctx.Err())
		}

		tool, ok := r.tools[name]
		if !ok {
			result.Skipped[name] = "no tool registered for this name"
			continue
		}
		settings := cfg.Scanners[name]
		if !settings.Enabled {
			result.Skipped[name] = "disabled in configuration"
			continue
		}

		if err := r.ensureReady(ctx, tool, cfg.AutoInstall); err != nil {
			r.logger.Warn("scanner not ready, skipping", "scanner", name, "error", err)
			result.Skipped[name] = err.Error()
			if len(requested) == 1 {
				return nil, mferrors.Wrap(mferrors.KindScannerUnavailable, "the only requested scanner is unavailable", err)
			}
			continue
		}

		findings, err := tool.Run(ctx, workDir, settings)
		if err != nil {
			r.logger.Warn("scanner run failed, continuing with other scanners", "scanner", name, "error", err)
			result.Skipped[name] = err.Error()
			continue
		}

		for path, fs := range findings {
			result.Findings[path] = append(result.Findings[path], fs...)
		}
		result.ExcludePatterns = append(result.ExcludePatterns, settings.ExcludePatterns...)
	}

	return result, nil
}

func (r *Runner) ensureReady(ctx context.Context, tool Tool, autoInstall bool) error {
	if err := tool.CheckInstalled(ctx); err == nil {
		return nil
	}
	if !autoInstall {
		return mferrors.New(mferrors.KindScannerUnavailable, "scanner "+tool.Name()+" is not installed and auto_install is disabled")
	}
	if err := tool.Install(ctx); err != nil {
		return mferrors.Wrap(mferrors.KindScannerUnavailable, "install scanner "+tool.Name(), err)
	}
	return tool.CheckInstalled(ctx)
}

// Attach merges ScanResult.Findings into m's entries by path, applying the
// per-file cap (oldest kept) and the "present in manifest" whitelist from
// spec §4.6 step 5. Entries not scanned by any tool are left untouched so
// the scanned/not-scanned distinction in FileEntry.Scanned holds.
func Attach(m *manifest.Manifest, result *ScanResult, maxFindingsPerFile int) {
	idx := m.IndexByPath()

	for path, findings := range result.Findings {
		i, ok := idx[path]
		if !ok {
			continue
		}
		entry := &m.Files[i]
		merged := append(append([]manifest.Finding{}, entry.Vulnerabilities...), findings...)
		if maxFindingsPerFile > 0 && len(merged) > maxFindingsPerFile {
			merged = merged[:maxFindingsPerFile]
		}
		entry.Vulnerabilities = merged
	}

	// Files that no scanner reported any finding for, but that were in
	// scope for this run (not matched by any ran scanner's exclude
	// patterns), get an explicit empty slice so Scanned() reports true.
	// Files outside every ran scanner's scope keep a nil Vulnerabilities
	// so the "not scanned" state from spec §4.2 is preserved.
	for i := range m.Files {
		if m.Files[i].Vulnerabilities == nil && withinWhitelist(m.Files[i].Path, result.ExcludePatterns) {
			m.Files[i].Vulnerabilities = []manifest.Finding{}
		}
	}
}

// NormalizeSeverity maps a scanner-native severity string onto the
// canonical five-level set. Unrecognized values fall back to info so a
// malformed/unknown taxonomy never silently escalates risk.
func NormalizeSeverity(native string) manifest.Severity {
	switch native {
	case "CRITICAL", "Critical", "critical":
		return manifest.SeverityCritical
	case "HIGH", "High", "high", "ERROR", "error":
		return manifest.SeverityHigh
	case "MEDIUM", "Medium", "medium", "WARNING", "warning":
		return manifest.SeverityMedium
	case "LOW", "Low", "low":
		return manifest.SeverityLow
	default:
		return manifest.SeverityInfo
	}
}

// withinWhitelist reports whether path survives the configured exclude
// patterns (glob-matched against the path and its base name).
func withinWhitelist(path string, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return false
		}
		if len(pattern) > 0 && pattern[len(pattern)-1] == '/' && hasPrefix(path, pattern) {
			return false
		}
	}
	return true
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}
