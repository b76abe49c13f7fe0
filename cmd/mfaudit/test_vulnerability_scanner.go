package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/manifestaudit/internal/scanner"
	"github.com/spf13/cobra"
)

var testScannerCmd = &cobra.Command{
	Use:   "test-vulnerability-scanner",
	Short: "Check which configured scanners are installed and runnable",
	RunE:  runTestScanner,
}

func init() {
	testScannerCmd.Flags().StringSlice("scanners", []string{"gosec", "semgrep"}, "scanners to check")
}

func runTestScanner(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("scanners")
	ctx := context.Background()

	tools := map[string]scanner.Tool{
		"gosec":   scanner.NewGosecTool(),
		"semgrep": scanner.NewSemgrepTool(),
	}

	for _, name := range names {
		tool, ok := tools[name]
		if !ok {
			fmt.Printf("%-10s unknown\n", name)
			continue
		}
		if err := tool.CheckInstalled(ctx); err != nil {
			fmt.Printf("%-10s not installed (%v)\n", name, err)
			continue
		}
		fmt.Printf("%-10s installed\n", name)
	}

	return nil
}
