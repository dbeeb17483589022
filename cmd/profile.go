package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/document"
	"github.com/spigell/job-radar/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the candidate profile",
}

var profileImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate a profile json file (or extract one from a PDF resume) and make it the candidate's current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromPDF, _ := cmd.Flags().GetBool("pdf")
		return importProfile(cmd.Context(), args[0], fromPDF)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the candidate's current profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return showProfile(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileImportCmd.Flags().Bool("pdf", false, "Treat FILE as a PDF resume and extract the profile with the ai provider")
	profileCmd.AddCommand(profileShowCmd)
}

func importProfile(ctx context.Context, filename string, fromPDF bool) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
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

	var p *profile.Profile
	if fromPDF {
		p, err = extractProfile(ctx, e, data)
	} else {
		p, err = profile.Parse(data)
	}
	if err != nil {
		return err
	}

	if err := e.store.SaveProfile(ctx, candidate, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	counts := p.Counts()
	e.logger.Info("profile saved",
		zap.String("candidate", candidate),
		zap.Int("work_experience", counts.WorkExperience),
		zap.Int("education", counts.Education),
		zap.Int("projects", counts.Projects),
		zap.Int("skills", len(p.SkillList())),
	)
	return nil
}

func showProfile(ctx context.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	candidate, err := e.candidate()
	if err != nil {
		return err
	}

	p, err := e.store.LatestProfile(ctx, candidate)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	pretty, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	fmt.Println(string(pretty))
	return nil
}

func extractProfile(ctx context.Context, e *env, data []byte) (*profile.Profile, error) {
	text, err := document.PDFText(data, e.logger)
	if err != nil {
		return nil, err
	}

	oracle, err := newOracle(ctx, e.config.AI, e.logger)
	if err != nil {
		return nil, err
	}

	p, err := oracle.ExtractProfile(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract profile: %w", err)
	}
	return p, nil
}
