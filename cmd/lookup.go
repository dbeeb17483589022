package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup URL",
	Short: "Find the stored posting and application behind a job page url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lookup(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func lookup(ctx context.Context, url string) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	r, err := e.reconciler(ctx, false)
	if err != nil {
		return err
	}

	match, err := r.Lookup(ctx, candidate, url)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(match, "", "  ")
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
