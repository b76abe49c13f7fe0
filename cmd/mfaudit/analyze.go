package main

import (
	"context"
	"os"
	"strings"

	"github.com/rohankatakam/manifestaudit/internal/analyzer"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/phase"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner/repo>",
	Short: "Run one or more pipeline phases and write the manifest",
	Long: `analyze drives the phase controller through whichever phases are
requested (default: all four, in canonical order P1, P1.5, P2.5, P3),
reading and re-saving the manifest after each.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSlice("phase", nil, "phases to run (inventory, tokens, classify, scan); default all")
	analyzeCmd.Flags().String("provider", "", "primary LLM provider (default: config's default_provider)")
	analyzeCmd.Flags().String("output", "", "manifest output path (default: config's output dir/filename)")
	analyzeCmd.Flags().Bool("scan-vulnerabilities", false, "run C6 vulnerability scanning during P3")
	analyzeCmd.Flags().StringSlice("scanners", []string{"gosec", "semgrep"}, "scanners to run when --scan-vulnerabilities is set")
	analyzeCmd.Flags().Bool("skip-cost-preview", false, "skip the sampling-based cost preview and consent prompt")
	analyzeCmd.Flags().Bool("yes", false, "auto-confirm the cost preview prompt")
	analyzeCmd.Flags().Bool("reanalyze", false, "re-classify files that already carry a classification")
	analyzeCmd.Flags().Bool("dry-run", false, "run phases without writing the manifest")
}

var phaseAliases = map[string]phase.Name{
	"inventory": phase.Inventory,
	"p1":        phase.Inventory,
	"tokens":    phase.TokenAccounting,
	"p1.5":      phase.TokenAccounting,
	"classify":  phase.Classification,
	"p2.5":      phase.Classification,
	"scan":      phase.VulnAndRisk,
	"risk":      phase.VulnAndRisk,
	"p3":        phase.VulnAndRisk,
}

func resolvePhases(requested []string) ([]phase.Name, error) {
	if len(requested) == 0 {
		return []phase.Name{phase.Inventory, phase.TokenAccounting, phase.Classification, phase.VulnAndRisk}, nil
	}
	names := make([]phase.Name, 0, len(requested))
	for _, r := range requested {
		n, ok := phaseAliases[strings.ToLower(r)]
		if !ok {
			return nil, mferrors.New(mferrors.KindConfigInvalid, "unknown phase: "+r)
		}
		names = append(names, n)
	}
	return names, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoURL := args[0]
	phaseArgs, _ := cmd.Flags().GetStringSlice("phase")
	provider, _ := cmd.Flags().GetString("provider")
	output, _ := cmd.Flags().GetString("output")
	scanVulns, _ := cmd.Flags().GetBool("scan-vulnerabilities")
	scanners, _ := cmd.Flags().GetStringSlice("scanners")
	skipPreview, _ := cmd.Flags().GetBool("skip-cost-preview")
	autoConfirm, _ := cmd.Flags().GetBool("yes")
	reanalyze, _ := cmd.Flags().GetBool("reanalyze")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	phases, err := resolvePhases(phaseArgs)
	if err != nil {
		return err
	}

	var scanTools []string
	if scanVulns {
		scanTools = scanners
	}

	ctx := context.Background()
	c := buildController(ctx)

	outcomes, err := c.Run(ctx, phase.Options{
		RepoURL:         repoURL,
		ManifestPath:    manifestPathFor(output),
		Phases:          phases,
		Provider:        provider,
		ScanTools:       scanTools,
		SkipCostPreview: skipPreview,
		AutoConfirm:     autoConfirm,
		ConsentPrompt:   consentPrompt(autoConfirm),
		Reanalyze:       reanalyze,
		DryRun:          dryRun,
	})

	for _, o := range outcomes {
		logger.WithField("phase", o.Phase).WithField("status", o.Status).Info("phase outcome")
	}

	return err
}

// consentPrompt renders a cost preview and asks the operator to confirm
// before classification proceeds, per spec §4.5's sampling-preview gate.
func consentPrompt(autoConfirm bool) func(*analyzer.CostPreview) (bool, error) {
	return func(preview *analyzer.CostPreview) (bool, error) {
		printErr("Cost preview (%s, sampled %d/%d candidates):", preview.Provider, preview.SampleSize, preview.CandidateCount)
		printErr("  projected input tokens:  %d", preview.ProjectedInputTok)
		printErr("  projected output tokens: %d", preview.ProjectedOutputTok)
		printErr("  projected cost:          $%.4f (range $%.4f - $%.4f)",
			preview.ProjectedCostUSD, preview.ConfidenceBandLow, preview.ConfidenceBandHigh)
		return analyzer.Confirm(os.Stdin, os.Stderr, "Proceed with classification?", autoConfirm)
	}
}

