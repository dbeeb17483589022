// Package tailor rewrites a candidate profile for one posting and scores the result.
// Nothing here persists: saving goes through the reconciler.
package tailor

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
	"github.com/spigell/job-radar/internal/telemetry"
)

var tracer = telemetry.GetTracer("job-radar/tailor")

type Oracle interface {
	Rewrite(ctx context.Context, posting *jobs.Posting, p *profile.Profile) (*ai.Rewrite, error)
	Rescore(ctx context.Context, posting *jobs.Posting, content *profile.Profile) (int, error)
}

type Result struct {
	Content *profile.Profile
	Changes []string
	Score   int
	// Warnings lists entry counts the rewrite did not preserve.
	Warnings []string
}

type Tailor struct {
	oracle   Oracle
	postings store.Postings
	profiles store.Profiles
	logger   *zap.Logger
}

func New(oracle Oracle, postings store.Postings, profiles store.Profiles, log *zap.Logger) *Tailor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tailor{
		oracle:   oracle,
		postings: postings,
		profiles: profiles,
		logger:   log,
	}
}

// Tailor rewrites the candidate's current profile for the posting and immediately
// scores the rewritten content. Oracle failures are returned as is.
func (t *Tailor) Tailor(ctx context.Context, postingID, candidateID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "tailor.Tailor")
	span.SetAttributes(telemetry.String("posting.id", postingID), telemetry.String("candidate.id", candidateID))
	defer span.End()

	posting, err := t.posting(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	original, err := t.profiles.LatestProfile(ctx, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperrors.NotFound(fmt.Sprintf("profile for candidate %q", candidateID), err)
		}
		span.RecordError(err)
		return nil, err
	}

	log := logger.WithApplication(t.logger, candidateID, postingID)

	rewrite, err := t.oracle.Rewrite(ctx, posting, original)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rewrite failed")
		return nil, fmt.Errorf("rewrite profile: %w", err)
	}

	score, err := t.oracle.Rescore(ctx, posting, rewrite.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score failed")
		return nil, fmt.Errorf("score rewritten profile: %w", err)
	}

	warnings := profile.Compare(original, rewrite.Content)
	for _, warning := range warnings {
		log.Warn("rewrite did not preserve profile entries", zap.String("detail", warning))
	}

	span.SetAttributes(telemetry.Int("tailor.score", score), telemetry.Int("tailor.warnings", len(warnings)))
	log.Info("profile tailored", zap.Int("score", score), zap.Int("changes", len(rewrite.Changes)))

	return &Result{
		Content:  rewrite.Content,
		Changes:  rewrite.Changes,
		Score:    score,
		Warnings: warnings,
	}, nil
}

// Rescore scores caller supplied content against the posting.
func (t *Tailor) Rescore(ctx context.Context, postingID string, content *profile.Profile) (int, error) {
	ctx, span := tracer.Start(ctx, "tailor.Rescore")
	span.SetAttributes(telemetry.String("posting.id", postingID))
	defer span.End()

	if content == nil {
		return 0, apperrors.InvalidInput("content is required", nil)
	}

	posting, err := t.posting(ctx, postingID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	score, err := t.oracle.Rescore(ctx, posting, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score failed")
		return 0, fmt.Errorf("score content: %w", err)
	}

	logger.WithApplication(t.logger, "", postingID).Info("content rescored", zap.Int("score", score))
	return score, nil
}

func (t *Tailor) posting(ctx context.Context, id string) (*jobs.Posting, error) {
	posting, err := t.postings.GetPosting(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("posting %q", id), err)
		}
		return nil, fmt.Errorf("load posting %q: %w", id, err)
	}
	return posting, nil
}
