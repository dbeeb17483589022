package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/profile"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor POSTING_ID",
	Short: "Rewrite the candidate profile for a posting and score the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")
		output, _ := cmd.Flags().GetString("output")
		return tailorPosting(cmd.Context(), args[0], save, output)
	},
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore POSTING_ID",
	Short: "Score edited profile content against a posting without saving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		return rescore(cmd.Context(), args[0], content)
	},
}

func init() {
	rootCmd.AddCommand(tailorCmd)
	rootCmd.AddCommand(rescoreCmd)

	tailorCmd.Flags().BoolP("save", "s", false, "save the tailored content on the application")
	tailorCmd.Flags().StringP("output", "o", "", "write the tailored profile json to this file")

	rescoreCmd.Flags().String("content", "", "file with the edited profile json")
	rescoreCmd.MarkFlagRequired("content")
}

func tailorPosting(ctx context.Context, postingID string, save bool, output string) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	t, err := e.tailor(ctx)
	if err != nil {
		return err
	}

	result, err := t.Tailor(ctx, postingID, candidate)
	if err != nil {
		return fmt.Errorf("tailoring failed: %w", err)
	}

	fmt.Printf("score: %d\n", result.Score)
	for _, change := range result.Changes {
		fmt.Printf("  - %s\n", change)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	if output != "" {
		data, err := json.MarshalIndent(result.Content, "", "  ")
		if err != nil {
			return fmt.Errorf("encode tailored profile: %w", err)
		}
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return fmt.Errorf("write tailored profile: %w", err)
		}
		e.logger.Info("tailored profile written", zap.String("filename", output))
	}

	if !save {
		return nil
	}

	r, err := e.reconciler(ctx, false)
	if err != nil {
		return err
	}
	app, err := r.SaveTailored(ctx, candidate, postingID, result.Content, result.Score)
	if err != nil {
		return fmt.Errorf("saving tailored content: %w", err)
	}

	e.logger.Info("tailored content saved", zap.String("posting_id", postingID), zap.String("status", string(app.Status)))
	return nil
}

func rescore(ctx context.Context, postingID, contentFile string) error {
	data, err := os.ReadFile(contentFile)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	content, err := profile.Parse(data)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	t, err := e.tailor(ctx)
	if err != nil {
		return err
	}

	score, err := t.Rescore(ctx, postingID, content)
	if err != nil {
		return fmt.Errorf("rescoring failed: %w", err)
	}

	fmt.Printf("score: %d\n", score)
	return nil
}
