package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection <owner/repo>",
	Short: "Verify RepoSource credentials and reachability",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestConnection,
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	source := buildSource()

	if err := source.TestConnection(ctx); err != nil {
		return err
	}

	branch, commit, err := source.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("connection ok: %s @ %s (%s)\n", args[0], branch, commit)
	return nil
}
