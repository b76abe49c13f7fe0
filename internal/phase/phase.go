// Package phase implements the Phase Controller (C8): phase selection,
// component wiring, commit-pinning enforcement, and manifest persistence
// after every phase. Grounded on the teacher's cmd/crisk/check.go
// orchestration style (resolve config/clients once, run a sequence of
// named steps, report per-step outcome via logrus).
package phase

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/manifestaudit/internal/analyzer"
	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"github.com/rohankatakam/manifestaudit/internal/risk"
	"github.com/rohankatakam/manifestaudit/internal/scanner"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
)

// Name identifies one of the four phases the controller can run.
type Name string

const (
	Inventory      Name = "P1"
	TokenAccounting Name = "P1.5"
	Classification Name = "P2.5"
	VulnAndRisk    Name = "P3"
)

// Status is a phase's position in its state machine:
// Pending -> Running -> (Completed | Failed | Cancelled).
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// Outcome reports one phase's terminal status.
type Outcome struct {
	Phase  Name
	Status Status
	Err    error
}

// Controller wires C1-C7 together and drives whichever phases are
// requested, in the order named in spec §4.8, always read-merge-save.
type Controller struct {
	source          reposource.RepoSource
	providers       *llmprovider.Registry
	accountant      *tokens.Accountant
	scanRunner      *scanner.Runner
	riskCalculator  *risk.Calculator
	logger          *slog.Logger
	cfg             *config.Config
}

// New builds a Controller from already-constructed components — the
// cmd package is responsible for resolving credentials and building
// concrete providers/tools before calling this.
func New(
	source reposource.RepoSource,
	providers *llmprovider.Registry,
	accountant *tokens.Accountant,
	scanRunner *scanner.Runner,
	riskCalculator *risk.Calculator,
	logger *slog.Logger,
	cfg *config.Config,
) *Controller {
	return &Controller{
		source:         source,
		providers:      providers,
		accountant:     accountant,
		scanRunner:     scanRunner,
		riskCalculator: riskCalculator,
		logger:         logger.With("component", "phase-controller"),
		cfg:            cfg,
	}
}

// Options configures one Run invocation.
type Options struct {
	RepoURL          string
	ManifestPath     string
	Phases           []Name
	Provider         string // primary provider name; "" uses cfg.LLM.DefaultProvider
	ScanTools        []string
	SkipCostPreview  bool
	AutoConfirm      bool
	ConsentPrompt    func(preview *analyzer.CostPreview) (bool, error)
	Reanalyze        bool
	DryRun           bool
}

// Run executes the requested phases in the canonical order
// (P1, P1.5, P2.5, P3), regardless of the order they were requested in,
// since later phases depend on earlier ones' output. Each phase reads the
// manifest fresh, does its work, merges, and saves before the next
// begins — the controller never holds two phases' changes in memory
// unsaved.
func (c *Controller) Run(ctx context.Context, opts Options) ([]Outcome, error) {
	canonical := []Name{Inventory, TokenAccounting, Classification, VulnAndRisk}
	requested := toSet(opts.Phases)

	runID := uuid.New()
	runLogger := c.logger.With("run_id", runID.String())

	var outcomes []Outcome
	for _, ph := range canonical {
		if !requested[ph] {
			continue
		}
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Phase: ph, Status: StatusCancelled, Err: ctx.Err()})
			return outcomes, mferrors.Wrap(mferrors.KindCancelled, "cancelled before phase "+string(ph), ctx.Err())
		}

		outcome := c.runPhase(ctx, runLogger, ph, opts)
		outcomes = append(outcomes, outcome)
		if outcome.Status != StatusCompleted {
			return outcomes, outcome.Err
		}
	}
	return outcomes, nil
}

func (c *Controller) runPhase(ctx context.Context, logger *slog.Logger, ph Name, opts Options) Outcome {
	logger.Info("phase starting", "phase", ph)
	start := time.Now()

	var err error
	switch ph {
	case Inventory:
		err = c.runInventory(ctx, opts)
	case TokenAccounting:
		err = c.runTokenAccounting(ctx, opts)
	case Classification:
		err = c.runClassification(ctx, opts)
	case VulnAndRisk:
		err = c.runVulnAndRisk(ctx, opts)
	}

	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		if kind, ok := mferrors.KindOf(err); ok && kind == mferrors.KindCancelled {
			status = StatusCancelled
		}
	}

	logger.Info("phase finished", "phase", ph, "status", status, "duration", time.Since(start).String())
	return Outcome{Phase: ph, Status: status, Err: err}
}

// loadOrInit reads the manifest if present, or seeds a fresh one pinned to
// the resolved commit for a first P1 run.
func (c *Controller) loadOrInit(ctx context.Context, opts Options) (*manifest.Manifest, error) {
	m, err := manifest.Load(opts.ManifestPath)
	if err == nil {
		return c.checkStale(ctx, opts, m)
	}
	if !isNotExist(err) {
		return nil, err
	}

	branch, commit, resolveErr := c.source.Resolve(ctx, opts.RepoURL)
	if resolveErr != nil {
		return nil, resolveErr
	}
	return &manifest.Manifest{
		Repository: manifest.Repository{
			URL:           opts.RepoURL,
			DefaultBranch: branch,
			CommitSHA:     commit,
			FirstAnalyzed: time.Now().UTC(),
		},
	}, nil
}

// checkStale enforces spec §3/§5's commit-pinning invariant: a later
// phase resolving a different commit than the one stored fails fatally
// rather than silently mixing snapshots.
func (c *Controller) checkStale(ctx context.Context, opts Options, m *manifest.Manifest) (*manifest.Manifest, error) {
	_, commit, err := c.source.Resolve(ctx, opts.RepoURL)
	if err != nil {
		return nil, err
	}
	if m.Repository.CommitSHA != "" && commit != m.Repository.CommitSHA {
		return nil, mferrors.New(mferrors.KindStaleManifest,
			"resolved commit "+commit+" disagrees with pinned commit "+m.Repository.CommitSHA)
	}
	return m, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
