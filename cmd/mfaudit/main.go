// Command mfaudit audits a remote source repository and produces a
// structured manifest combining provenance, AI-derived classification,
// static-scanner findings, and a composite risk score. Modeled on the
// teacher's cmd/crisk cobra CLI layout.
package main

import (
	"fmt"
	"os"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/logging"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if kind, ok := mferrors.KindOf(err); ok {
			os.Exit(kind.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mfaudit",
	Short: "Audits a repository and produces a structured risk manifest",
	Long: `mfaudit audits a remote source-code repository and produces a
single JSON manifest recording, for every file, its provenance, an
AI-derived classification, static-scanner findings, and a composite
risk score with priority and SLA.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("failed to load config, using defaults")
			loaded = config.Default()
		}
		if err := loaded.Validate(); err != nil {
			return mferrors.Wrap(mferrors.KindConfigInvalid, "configuration is invalid", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.yaml in ./.manifestaudit or the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(testLLMCmd)
	rootCmd.AddCommand(testScannerCmd)
	rootCmd.AddCommand(costPreviewCmd)
	rootCmd.AddCommand(analyzeTokensCmd)
}
