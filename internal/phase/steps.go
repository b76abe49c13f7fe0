package phase

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/manifestaudit/internal/analyzer"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/scanner"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
)

// runInventory is P1: resolve + list_files -> save. The file list is
// rebuilt in listing order; entries for paths still listed keep their prior
// enrichment, and entries for paths no longer listed are kept after them
// (orphan-tolerant). An existing manifest's repository block is kept.
func (c *Controller) runInventory(ctx context.Context, opts Options) error {
	m, err := c.loadOrInit(ctx, opts)
	if err != nil {
		return err
	}

	refs, err := c.source.ListFiles(ctx, opts.RepoURL, m.Repository.CommitSHA)
	if err != nil {
		return err
	}

	existing := m.IndexByPath()
	listed := make(map[string]bool, len(refs))
	files := make([]manifest.FileEntry, 0, len(refs))
	for _, ref := range refs {
		listed[ref.Path] = true
		entry := manifest.FileEntry{
			Path:      ref.Path,
			BlobID:    ref.BlobID,
			Size:      ref.Size,
			Extension: strings.ToLower(filepath.Ext(ref.Path)),
		}
		if i, ok := existing[ref.Path]; ok {
			// Preserve prior enrichment for files that survived between
			// inventory runs, keyed by path.
			prior := m.Files[i]
			prior.BlobID = entry.BlobID
			prior.Size = entry.Size
			prior.Extension = entry.Extension
			entry = prior
		}
		files = append(files, entry)
	}
	for _, prior := range m.Files {
		if !listed[prior.Path] {
			files = append(files, prior)
		}
	}
	m.Files = files

	if opts.DryRun {
		return nil
	}
	return manifest.Save(opts.ManifestPath, m)
}

// runTokenAccounting is P1.5: for each whitelisted entry, fetch its blob
// and attach token_stats. No LLM calls are made.
func (c *Controller) runTokenAccounting(ctx context.Context, opts Options) error {
	m, err := c.loadOrInit(ctx, opts)
	if err != nil {
		return err
	}

	providerName := opts.Provider
	if providerName == "" {
		providerName = c.cfg.LLM.DefaultProvider
	}
	settings := c.cfg.LLM.Providers[providerName]
	rates := tokens.Rates{InputPerThousand: settings.InputRatePer1k, OutputPerThousand: settings.OutputRatePer1k}

	whitelist := make(map[string]bool, len(c.cfg.Analysis.FileExtensions))
	for _, ext := range c.cfg.Analysis.FileExtensions {
		whitelist[ext] = true
	}

	var totalCost float64
	for i := range m.Files {
		if ctx.Err() != nil {
			if !opts.DryRun {
				_ = manifest.Save(opts.ManifestPath, m)
			}
			return mferrors.Wrap(mferrors.KindCancelled, "token accounting cancelled", ctx.Err())
		}
		entry := &m.Files[i]
		if !whitelist[entry.Extension] {
			continue
		}
		if c.cfg.Analysis.MaxFileSize > 0 && entry.Size > c.cfg.Analysis.MaxFileSize {
			continue
		}

		content, err := c.source.FetchBlob(ctx, opts.RepoURL, entry.BlobID)
		if err != nil {
			c.logger.Warn("skipping token accounting for unreadable blob", "path", entry.Path, "error", err)
			continue
		}

		stats := c.accountant.Count(entry.Path, entry.Extension, string(content), rates)
		entry.TokenStats = &stats
		totalCost += stats.EstimatedCost
	}

	c.logger.Info("token accounting complete", "projected_cost_usd", totalCost)

	if opts.DryRun {
		return nil
	}
	return manifest.Save(opts.ManifestPath, m)
}

// runClassification is P2.5: sample-based cost preview with operator
// consent, then the bounded-concurrency enrichment loop (C5), merged and
// saved.
func (c *Controller) runClassification(ctx context.Context, opts Options) error {
	m, err := c.loadOrInit(ctx, opts)
	if err != nil {
		return err
	}

	providerName := opts.Provider
	if providerName == "" {
		providerName = c.cfg.LLM.DefaultProvider
	}
	primary, ok := c.providers.Get(providerName)
	if !ok {
		return mferrors.New(mferrors.KindConfigInvalid, "unknown provider: "+providerName)
	}
	var secondary llmprovider.Provider
	for _, name := range c.providers.Names() {
		if name == providerName {
			continue
		}
		if p, ok := c.providers.Get(name); ok {
			secondary = p
			break
		}
	}

	candidateIdx := analyzer.Candidates(m.Files, c.cfg.Analysis, opts.Reanalyze)
	if len(candidateIdx) == 0 {
		c.logger.Info("no classification candidates, nothing to do")
		if opts.DryRun {
			return nil
		}
		return manifest.Save(opts.ManifestPath, m)
	}

	if !opts.SkipCostPreview {
		settings := c.cfg.LLM.Providers[providerName]
		rates := tokens.Rates{InputPerThousand: settings.InputRatePer1k, OutputPerThousand: settings.OutputRatePer1k}
		preview, err := analyzer.BuildCostPreview(ctx, rand.New(rand.NewSource(1)), c.source, opts.RepoURL, m.Files, candidateIdx, primary, rates, c.cfg.Analysis.SampleSize)
		if err != nil {
			return err
		}
		if opts.ConsentPrompt != nil {
			proceed, err := opts.ConsentPrompt(preview)
			if err != nil {
				return err
			}
			if !proceed {
				return mferrors.New(mferrors.KindCancelled, "operator declined cost preview consent")
			}
		}
	}

	if opts.DryRun {
		return nil
	}

	a := analyzer.New(c.source, primary, secondary, c.logger, c.cfg.Analysis)
	a.Run(ctx, opts.RepoURL, m, candidateIdx)

	if ctx.Err() != nil {
		_ = manifest.Save(opts.ManifestPath, m)
		return mferrors.Wrap(mferrors.KindCancelled, "classification cancelled", ctx.Err())
	}

	return manifest.Save(opts.ManifestPath, m)
}

// runVulnAndRisk is P3: run C6, then C7 over every entry.
func (c *Controller) runVulnAndRisk(ctx context.Context, opts Options) error {
	m, err := c.loadOrInit(ctx, opts)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return nil
	}

	if c.scanRunner != nil && len(opts.ScanTools) > 0 {
		result, err := c.scanRunner.Run(ctx, opts.RepoURL, m.Repository.CommitSHA, opts.ScanTools, c.cfg.VulnerabilityScan)
		if err != nil {
			_ = manifest.Save(opts.ManifestPath, m)
			return err
		}
		scanner.Attach(m, result, c.cfg.VulnerabilityScan.MaxFindingsPerFile)
	}

	for i := range m.Files {
		assessment := c.riskCalculator.Score(&m.Files[i])
		m.Files[i].RiskAssessment = &assessment
	}

	return manifest.Save(opts.ManifestPath, m)
}
