package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/job-radar/internal/jobs"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze POSTING_ID",
	Short: "Explain how well the candidate matches a posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyze(cmd.Context(), args[0])
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply POSTING_ID",
	Short: "Mark a posting as applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markApplied(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(applyCmd)
}

func analyze(ctx context.Context, postingID string) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	r, err := e.reconciler(ctx, true)
	if err != nil {
		return err
	}

	analysis, err := r.Analyze(ctx, candidate, postingID)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printAnalysis(analysis)
	return nil
}

func printAnalysis(a *jobs.Analysis) {
	fmt.Printf("score: %d\n", a.Score)
	if a.Summary != "" {
		fmt.Println(a.Summary)
	}
	printList("matching", a.MatchingKeywords)
	printList("missing", a.MissingKeywords)
	printList("findings", a.KeyFindings)
	printList("fixes", a.FixSuggestions)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s: %s\n", label, strings.Join(items, ", "))
}

func markApplied(ctx context.Context, postingID string) error {
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

	app, err := r.MarkApplied(ctx, candidate, postingID)
	if err != nil {
		return fmt.Errorf("marking applied: %w", err)
	}

	fmt.Printf("%s: %s\n", app.PostingID, app.Status)
	return nil
}
