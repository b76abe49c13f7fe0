package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a summary of an existing manifest",
	RunE:  runShow,
}

func init() {
	showCmd.Flags().String("output", "", "manifest path (default: config's output dir/filename)")
	showCmd.Flags().String("format", "", "print the full manifest as json or yaml instead of a summary")
}

var priorityColor = map[manifest.Priority]*color.Color{
	manifest.PriorityCritical: color.New(color.FgRed, color.Bold),
	manifest.PriorityHigh:     color.New(color.FgRed),
	manifest.PriorityMedium:   color.New(color.FgYellow),
	manifest.PriorityLow:      color.New(color.FgGreen),
	manifest.PriorityInfo:     color.New(color.FgWhite),
}

func runShow(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	path := manifestPathFor(output)
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml":
		out, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		_, err = cmdOut().Write(out)
		return err
	}

	fmt.Printf("repository: %s\n", m.Repository.URL)
	fmt.Printf("commit:     %s\n", m.Repository.CommitSHA)
	fmt.Printf("files:      %d\n", len(m.Files))

	var classified, placeholders, scanned, risked int
	for _, f := range m.Files {
		if f.HasPurpose() {
			classified++
		}
		if strings.HasPrefix(f.Reasoning, "analysis_failed:") {
			placeholders++
		}
		if f.Scanned() {
			scanned++
		}
		if f.RiskAssessment != nil {
			risked++
		}
	}
	fmt.Printf("classified: %d\n", classified)
	fmt.Printf("scanned:    %d\n", scanned)
	fmt.Printf("risk-scored: %d\n", risked)
	fmt.Printf("placeholder classifications: %d\n", placeholders)

	priorities := map[manifest.Priority]int{}
	for _, f := range m.Files {
		if f.RiskAssessment != nil {
			priorities[f.RiskAssessment.Priority]++
		}
	}
	for _, p := range []manifest.Priority{
		manifest.PriorityCritical, manifest.PriorityHigh, manifest.PriorityMedium,
		manifest.PriorityLow, manifest.PriorityInfo,
	} {
		if count, ok := priorities[p]; ok {
			line := fmt.Sprintf("  %-8s %d", p, count)
			if c, ok := priorityColor[p]; ok {
				c.Println(line)
			} else {
				fmt.Println(line)
			}
		}
	}

	return nil
}
