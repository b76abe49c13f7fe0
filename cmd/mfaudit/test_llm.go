package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/manifestaudit/internal/logging"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/spf13/cobra"
)

var testLLMCmd = &cobra.Command{
	Use:   "test-llm",
	Short: "Verify a configured LLM provider can be reached",
	RunE:  runTestLLM,
}

func init() {
	testLLMCmd.Flags().String("provider", "", "provider to test (default: config's default_provider)")
}

func runTestLLM(cmd *cobra.Command, args []string) error {
	providerName, _ := cmd.Flags().GetString("provider")
	if providerName == "" {
		providerName = cfg.LLM.DefaultProvider
	}

	ctx := context.Background()
	providers := buildProviders(ctx, logging.Slog(logger))

	provider, ok := providers.Get(providerName)
	if !ok {
		return mferrors.New(mferrors.KindConfigInvalid, "provider not configured or missing credentials: "+providerName)
	}

	if err := provider.TestConnection(ctx); err != nil {
		return err
	}

	fmt.Printf("llm provider %q reachable\n", provider.Name())
	return nil
}
