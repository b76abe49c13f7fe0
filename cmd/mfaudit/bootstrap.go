package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/logging"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/phase"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"github.com/rohankatakam/manifestaudit/internal/risk"
	"github.com/rohankatakam/manifestaudit/internal/scanner"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
)

// buildSource constructs the RepoSource from the resolved config and
// environment token, the way the teacher's init* helpers in check.go do for
// its own external clients.
func buildSource() *reposource.GitHubSource {
	token := cfg.Source.Token
	if token == "" {
		token = os.Getenv("SOURCE_ACCESS_TOKEN")
	}
	return reposource.NewGitHubSource(token, 0)
}

// buildProviders constructs every configured LLM provider it has
// credentials for, skipping (with a warning) any it can't build rather than
// failing the whole command — a command that only needs one provider should
// not be blocked by a missing key for the other.
func buildProviders(ctx context.Context, slogger *slog.Logger) *llmprovider.Registry {
	providers := map[string]llmprovider.Provider{}

	if settings, ok := cfg.LLM.Providers["gemini"]; ok {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			p, err := llmprovider.NewGeminiProvider(ctx, slogger, key, settings.Model)
			if err != nil {
				logger.WithError(err).Warn("could not build gemini provider")
			} else {
				providers["gemini"] = p
			}
		}
	}
	if settings, ok := cfg.LLM.Providers["openai"]; ok {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			p, err := llmprovider.NewOpenAIProvider(slogger, key, settings.Model)
			if err != nil {
				logger.WithError(err).Warn("could not build openai provider")
			} else {
				providers["openai"] = p
			}
		}
	}

	return llmprovider.NewRegistry(providers)
}

// buildScanRunner wires C6 with every scanner tool the pack knows about;
// scanner.Runner itself decides per-invocation which of requested tools are
// enabled and installed.
func buildScanRunner(source reposource.RepoSource, slogger *slog.Logger) *scanner.Runner {
	tools := map[string]scanner.Tool{
		"gosec":   scanner.NewGosecTool(),
		"semgrep": scanner.NewSemgrepTool(),
	}
	return scanner.NewRunner(source, tools, slogger, "")
}

// buildController assembles the full Phase Controller (C1-C7) from the
// process-wide cfg/logger.
func buildController(ctx context.Context) *phase.Controller {
	slogger := logging.Slog(logger)
	source := buildSource()
	providers := buildProviders(ctx, slogger)
	accountant := tokens.NewAccountant(nil)
	scanRunner := buildScanRunner(source, slogger)
	riskCalculator := risk.NewCalculator(cfg.RiskScoring)

	return phase.New(source, providers, accountant, scanRunner, riskCalculator, slogger, cfg)
}

// manifestPathFor resolves the on-disk manifest location, honoring an
// explicit --output flag before falling back to cfg.Output.
func manifestPathFor(output string) string {
	if output != "" {
		return output
	}
	return cfg.Output.DefaultDir + "/" + cfg.Output.ManifestFilename
}

func mustRepoArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", mferrors.New(mferrors.KindConfigInvalid, "exactly one repository argument is required")
	}
	return args[0], nil
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func cmdOut() *os.File {
	return os.Stdout
}
