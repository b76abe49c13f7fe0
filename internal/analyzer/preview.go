package analyzer

import (
	"context"
	"math"
	"math/rand"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
)

// Candidates selects entries eligible for classification: extension in
// the whitelist, size within budget, and (unless reanalyze is set) not
// already classified (spec §4.5 step 1).
func Candidates(entries []manifest.FileEntry, cfg config.AnalysisConfig, reanalyze bool) []int {
	whitelist := make(map[string]bool, len(cfg.FileExtensions))
	for _, ext := range cfg.FileExtensions {
		whitelist[ext] = true
	}

	var idxs []int
	for i, e := range entries {
		if !whitelist[e.Extension] {
			continue
		}
		if cfg.MaxFileSize > 0 && e.Size > cfg.MaxFileSize {
			continue
		}
		if e.HasPurpose() && !reanalyze {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

// CostPreview is the estimate presented to the operator before C5's
// enrichment loop runs (spec §4.5 step 2).
type CostPreview struct {
	Provider           string
	CandidateCount     int
	SampleSize         int
	ProjectedInputTok  int64
	ProjectedOutputTok int64
	ProjectedCostUSD   float64
	ConfidenceBandLow  float64
	ConfidenceBandHigh float64
}

// sampleUnit is one sampled candidate's observed token counts, used to
// extrapolate over the full candidate set.
type sampleUnit struct {
	inputTok  int
	outputTok int
	costUSD   float64
}

// BuildCostPreview samples min(sampleSize, len(candidates)) candidates
// uniformly at random, classifies them with provider, and extrapolates
// the observed per-file cost over the full candidate set. A nil rng falls
// back to a source with the fixed seed 1; callers in tests pass a seeded
// rand.Rand for determinism.
func BuildCostPreview(
	ctx context.Context,
	rng *rand.Rand,
	source reposource.RepoSource,
	repoURL string,
	entries []manifest.FileEntry,
	candidateIdx []int,
	provider llmprovider.Provider,
	rates tokens.Rates,
	sampleSize int,
) (*CostPreview, error) {
	if sampleSize <= 0 {
		sampleSize = 3
	}
	n := sampleSize
	if n > len(candidateIdx) {
		n = len(candidateIdx)
	}

	sampled := sampleIndices(rng, candidateIdx, n)
	units := make([]sampleUnit, 0, len(sampled))

	for _, idx := range sampled {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		entry := entries[idx]

		content, err := source.FetchBlob(ctx, repoURL, entry.BlobID)
		if err != nil {
			continue // a single unreadable sample doesn't sink the estimate
		}

		classification, err := provider.Classify(ctx, entry.Path, entry.Extension, string(content))
		if err != nil {
			continue
		}

		inputCost := float64(classification.InputTokens) / 1000 * rates.InputPerThousand
		outputCost := float64(classification.OutputTokens) / 1000 * rates.OutputPerThousand
		units = append(units, sampleUnit{
			inputTok:  classification.InputTokens,
			outputTok: classification.OutputTokens,
			costUSD:   inputCost + outputCost,
		})
	}

	if len(units) == 0 {
		return &CostPreview{
			Provider:       provider.Name(),
			CandidateCount: len(candidateIdx),
			SampleSize:     0,
		}, nil
	}

	meanInput, meanOutput, meanCost, stddevCost := summarize(units)
	total := float64(len(candidateIdx))

	return &CostPreview{
		Provider:           provider.Name(),
		CandidateCount:     len(candidateIdx),
		SampleSize:         len(units),
		ProjectedInputTok:  int64(meanInput * total),
		ProjectedOutputTok: int64(meanOutput * total),
		ProjectedCostUSD:   meanCost * total,
		ConfidenceBandLow:  math.Max(0, (meanCost-stddevCost)*total),
		ConfidenceBandHigh: (meanCost + stddevCost) * total,
	}, nil
}

func sampleIndices(rng *rand.Rand, pool []int, n int) []int {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	shuffled := append([]int{}, pool...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

func summarize(units []sampleUnit) (meanInput, meanOutput, meanCost, stddevCost float64) {
	n := float64(len(units))
	for _, u := range units {
		meanInput += float64(u.inputTok)
		meanOutput += float64(u.outputTok)
		meanCost += u.costUSD
	}
	meanInput /= n
	meanOutput /= n
	meanCost /= n

	if len(units) < 2 {
		return meanInput, meanOutput, meanCost, 0
	}

	var variance float64
	for _, u := range units {
		d := u.costUSD - meanCost
		variance += d * d
	}
	variance /= n - 1
	stddevCost = math.Sqrt(variance)
	return meanInput, meanOutput, meanCost, stddevCost
}
