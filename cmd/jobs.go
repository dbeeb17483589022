package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ingest"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/store"
)

const (
	PromptBack        = "back"
	PromptAnalyze     = "Analyze the match"
	PromptMarkApplied = "Mark as applied"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored postings, newest first, and act on one of them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		minScore, _ := cmd.Flags().GetInt("min-score")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		noPrompt, _ := cmd.Flags().GetBool("no-prompt")
		return listJobs(cmd.Context(), store.Query{ScoreAbove: minScore, Limit: limit, Offset: offset}, !noPrompt)
	},
}

var applicationsCmd = &cobra.Command{
	Use:   "applications",
	Short: "List the candidate's applications",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, _ := cmd.Flags().GetString("status")
		return listApplications(cmd.Context(), status)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(applicationsCmd)

	jobsCmd.Flags().Int("min-score", ingest.DefaultThreshold, "list postings scoring above this value")
	jobsCmd.Flags().Int("limit", 20, "maximum number of postings to list")
	jobsCmd.Flags().Int("offset", 0, "number of postings to skip")
	jobsCmd.Flags().Bool("no-prompt", false, "only print the list")

	applicationsCmd.Flags().String("status", "", "only list applications in this status (draft or applied)")
}

func listJobs(ctx context.Context, q store.Query, interactive bool) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	total, err := e.store.CountPostings(ctx, q)
	if err != nil {
		return fmt.Errorf("count postings: %w", err)
	}

	postings, err := e.store.ListPostings(ctx, q)
	if err != nil {
		return fmt.Errorf("list postings: %w", err)
	}

	e.logger.Info("current list of postings", zap.Int("count", len(postings)), zap.Int("total", total))

	if !interactive {
		for _, p := range postings {
			fmt.Println(postingLabel(p))
		}
		return nil
	}

	return choosePosting(ctx, e, postings)
}

func postingLabel(p *jobs.Posting) string {
	return fmt.Sprintf("%s %3d %s / %s / %s", p.ID, p.MatchScore, p.Title, p.Company, p.URL)
}

func choosePosting(ctx context.Context, e *env, postings []*jobs.Posting) error {
	for {
		items := make([]string, 0, len(postings)+1)
		for _, p := range postings {
			items = append(items, postingLabel(p))
		}

		postingPrompt := promptui.Select{
			Label: "Choose a posting and press ENTER",
			Items: append(items, PromptBack),
			Size:  10,
		}

		_, selected, err := postingPrompt.Run()
		if err != nil {
			return promptError(err)
		}
		if selected == PromptBack {
			return nil
		}

		postingID := strings.Split(selected, " ")[0]
		if err := postingAction(ctx, e, postingID); err != nil {
			return err
		}
	}
}

func postingAction(ctx context.Context, e *env, postingID string) error {
	actionPrompt := promptui.Select{
		Label: "Procced?",
		Items: []string{PromptAnalyze, PromptMarkApplied, PromptBack},
	}

	_, action, err := actionPrompt.Run()
	if err != nil {
		return promptError(err)
	}

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	switch action {
	case PromptAnalyze:
		r, err := e.reconciler(ctx, true)
		if err != nil {
			return err
		}
		analysis, err := r.Analyze(ctx, candidate, postingID)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		printAnalysis(analysis)
	case PromptMarkApplied:
		r, err := e.reconciler(ctx, false)
		if err != nil {
			return err
		}
		if _, err := r.MarkApplied(ctx, candidate, postingID); err != nil {
			return fmt.Errorf("marking applied: %w", err)
		}
		e.logger.Info("marked as applied", zap.String("posting_id", postingID))
	case PromptBack:
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
	return nil
}

// promptError treats ctrl-c and ctrl-d as a normal exit.
func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}

func listApplications(ctx context.Context, rawStatus string) error {
	var status jobs.Status
	if rawStatus != "" {
		parsed, err := jobs.ParseStatus(rawStatus)
		if err != nil {
			return err
		}
		status = parsed
	}

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	apps, err := e.store.ListApplications(ctx, candidate, status)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}

	for _, app := range apps {
		score := "-"
		if app.MatchAnalysis != nil {
			score = fmt.Sprintf("%d", app.MatchAnalysis.Score)
		}

		title := app.PostingID
		if posting, err := e.store.GetPosting(ctx, app.PostingID); err == nil {
			title = fmt.Sprintf("%s / %s", posting.Title, posting.Company)
		}

		fmt.Printf("%-8s %3s %s %s (updated %s)\n", app.Status, score, app.PostingID, title, app.UpdatedAt.Format("2006-01-02"))
	}
	return nil
}
