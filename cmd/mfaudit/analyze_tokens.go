package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/phase"
	"github.com/spf13/cobra"
)

var analyzeTokensCmd = &cobra.Command{
	Use:   "analyze-tokens <owner/repo>",
	Short: "Run token accounting (P1.5) standalone and write a sibling token-analysis file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeTokens,
}

func init() {
	analyzeTokensCmd.Flags().String("provider", "", "provider whose rate table to use (default: config's default_provider)")
	analyzeTokensCmd.Flags().String("output", "", "manifest path (default: config's output dir/filename)")
}

func runAnalyzeTokens(cmd *cobra.Command, args []string) error {
	provider, _ := cmd.Flags().GetString("provider")
	output, _ := cmd.Flags().GetString("output")

	ctx := context.Background()
	c := buildController(ctx)
	manifestPath := manifestPathFor(output)

	outcomes, err := c.Run(ctx, phase.Options{
		RepoURL:      args[0],
		ManifestPath: manifestPath,
		Phases:       []phase.Name{phase.Inventory, phase.TokenAccounting},
		Provider:     provider,
	})
	for _, o := range outcomes {
		logger.WithField("phase", o.Phase).WithField("status", o.Status).Info("phase outcome")
	}
	if err != nil {
		return err
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	tokenPath := siblingTokenPath(manifestPath)
	if err := writeTokenAnalysis(tokenPath, m); err != nil {
		return err
	}

	fmt.Printf("token analysis written to %s\n", tokenPath)
	return nil
}

// siblingTokenPath derives "<dir>/<name>.tokens.json" from a manifest path,
// using cfg.Output.TokenAnalysisFilename as the sibling's filename when the
// manifest itself is the configured default manifest filename.
func siblingTokenPath(manifestPath string) string {
	if strings.HasSuffix(manifestPath, cfg.Output.ManifestFilename) {
		return strings.TrimSuffix(manifestPath, cfg.Output.ManifestFilename) + cfg.Output.TokenAnalysisFilename
	}
	return strings.TrimSuffix(manifestPath, ".json") + ".tokens.json"
}

type tokenAnalysisEntry struct {
	Path          string  `json:"path"`
	PromptTokens  int     `json:"prompt_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

func writeTokenAnalysis(path string, m *manifest.Manifest) error {
	var entries []tokenAnalysisEntry
	var totalCost float64
	for _, f := range m.Files {
		if f.TokenStats == nil {
			continue
		}
		entries = append(entries, tokenAnalysisEntry{
			Path:          f.Path,
			PromptTokens:  f.TokenStats.PromptTokens,
			TotalTokens:   f.TokenStats.TotalTokens,
			EstimatedCost: f.TokenStats.EstimatedCost,
		})
		totalCost += f.TokenStats.EstimatedCost
	}

	doc := struct {
		Repository      string                `json:"repository"`
		CommitSHA       string                `json:"commit_sha"`
		TotalCostUSD    float64               `json:"total_estimated_cost_usd"`
		Files           []tokenAnalysisEntry  `json:"files"`
	}{
		Repository:   m.Repository.URL,
		CommitSHA:    m.Repository.CommitSHA,
		TotalCostUSD: totalCost,
		Files:        entries,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
