package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rohankatakam/manifestaudit/internal/analyzer"
	"github.com/rohankatakam/manifestaudit/internal/logging"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
	"github.com/spf13/cobra"
)

var costPreviewCmd = &cobra.Command{
	Use:   "cost-preview <owner/repo>",
	Short: "Estimate classification cost by classifying a small sample, without changing the manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runCostPreview,
}

func init() {
	costPreviewCmd.Flags().String("provider", "", "primary LLM provider (default: config's default_provider)")
	costPreviewCmd.Flags().Int("sample-size", 0, "number of candidates to sample (default: config's sample_size)")
	costPreviewCmd.Flags().String("output", "", "manifest path to read inventory from (default: config's output dir/filename)")
}

func runCostPreview(cmd *cobra.Command, args []string) error {
	providerName, _ := cmd.Flags().GetString("provider")
	sampleSize, _ := cmd.Flags().GetInt("sample-size")
	output, _ := cmd.Flags().GetString("output")

	if providerName == "" {
		providerName = cfg.LLM.DefaultProvider
	}
	if sampleSize == 0 {
		sampleSize = cfg.Analysis.SampleSize
	}

	m, err := manifest.Load(manifestPathFor(output))
	if err != nil {
		return mferrors.Wrap(mferrors.KindConfigInvalid, "cost-preview requires an inventory manifest; run analyze --phase inventory first", err)
	}

	ctx := context.Background()
	source := buildSource()
	providers := buildProviders(ctx, logging.Slog(logger))
	provider, ok := providers.Get(providerName)
	if !ok {
		return mferrors.New(mferrors.KindConfigInvalid, "provider not configured or missing credentials: "+providerName)
	}

	candidateIdx := analyzer.Candidates(m.Files, cfg.Analysis, cfg.Analysis.Reanalyze)
	settings := cfg.LLM.Providers[providerName]
	rates := tokens.Rates{InputPerThousand: settings.InputRatePer1k, OutputPerThousand: settings.OutputRatePer1k}

	preview, err := analyzer.BuildCostPreview(ctx, rand.New(rand.NewSource(1)), source, args[0], m.Files, candidateIdx, provider, rates, sampleSize)
	if err != nil {
		return err
	}

	fmt.Printf("provider:            %s\n", preview.Provider)
	fmt.Printf("candidates:          %d\n", preview.CandidateCount)
	fmt.Printf("sampled:             %d\n", preview.SampleSize)
	fmt.Printf("projected input tok: %d\n", preview.ProjectedInputTok)
	fmt.Printf("projected output tok: %d\n", preview.ProjectedOutputTok)
	fmt.Printf("projected cost:      $%.4f (range $%.4f - $%.4f)\n",
		preview.ProjectedCostUSD, preview.ConfidenceBandLow, preview.ConfidenceBandHigh)

	return nil
}
