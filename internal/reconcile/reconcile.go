// Package reconcile owns every write to applications. It keeps two rules:
//
//   - the posting's match score is the truth: an analysis stored on an application
//     always carries the posting's score (see ReconcileScore);
//   - an application's status only moves forward: draft -> applied, never back.
//
// Posting score and reason sync after an analysis write is best effort.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
	"github.com/spigell/job-radar/internal/telemetry"
)

const tailoredReason = "score of the tailored profile"

var tracer = telemetry.GetTracer("job-radar/reconcile")

type Analyzer interface {
	Analyze(ctx context.Context, posting *jobs.Posting, p *profile.Profile, truthScore int) (*jobs.Analysis, error)
}

type Policy struct {
	// PromoteTailoredScore lets SaveTailored raise the posting score to a higher
	// tailored score. Off by default: the listing-time score stays the truth.
	PromoteTailoredScore bool `mapstructure:"promote-tailored-score"`
}

type Deps struct {
	Oracle    Analyzer
	Store     store.Store
	Publisher events.Publisher
	Logger    *zap.Logger
}

type Reconciler struct {
	oracle    Analyzer
	store     store.Store
	publisher events.Publisher
	policy    Policy
	logger    *zap.Logger
}

func New(policy Policy, deps Deps) *Reconciler {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Reconciler{
		oracle:    deps.Oracle,
		store:     deps.Store,
		publisher: deps.Publisher,
		policy:    policy,
		logger:    deps.Logger,
	}
}

// ReconcileScore returns the score an analysis must carry and whether the analysis
// score had drifted from it. The posting score always wins.
func ReconcileScore(postingScore, analysisScore int) (final int, drifted bool) {
	final = jobs.ClampScore(postingScore)
	return final, analysisScore != final
}

// Analyze returns the candidate's analysis for the posting. A stored analysis is
// returned as is, re-pinned to the posting score when it drifted. Otherwise the
// oracle explains the posting score and the result is stored together with the
// candidate's current profile.
func (r *Reconciler) Analyze(ctx context.Context, candidateID, postingID string) (*jobs.Analysis, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Analyze")
	span.SetAttributes(telemetry.String("posting.id", postingID), telemetry.String("candidate.id", candidateID))
	defer span.End()

	log := logger.WithApplication(r.logger, candidateID, postingID)

	posting, err := r.posting(ctx, postingID)
	if err != nil {
		return nil, err
	}

	existing, err := r.application(ctx, candidateID, postingID)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.MatchAnalysis != nil {
		analysis := existing.MatchAnalysis
		final, drifted := ReconcileScore(posting.MatchScore, analysis.Score)
		if drifted {
			log.Info("re-syncing cached analysis score", zap.Int("from", analysis.Score), zap.Int("to", final))
			analysis.Score = final
			_, err := r.store.UpsertApplication(ctx, &jobs.Application{
				CandidateID:   candidateID,
				PostingID:     postingID,
				Status:        existing.Status,
				MatchAnalysis: analysis,
			})
			if err != nil {
				log.Warn("writing re-synced analysis failed", zap.Error(err))
			}
		}
		log.Debug("returning cached analysis")
		return analysis, nil
	}

	if r.oracle == nil {
		return nil, apperrors.Internal("analysis oracle is not configured", nil)
	}

	master, err := r.profile(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	analysis, err := r.oracle.Analyze(ctx, posting, master, posting.MatchScore)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("analyze posting: %w", err)
	}

	app, err := r.upsertAnalysis(ctx, posting, existing, candidateID, analysis, master)
	if err != nil {
		return nil, err
	}
	return app.MatchAnalysis, nil
}

// UpsertAnalysis stores analysis and content on the candidate's application for the
// posting. The analysis score is pinned to the posting score, the stored status is
// kept (new rows start as draft) and the posting reason is synced afterwards.
func (r *Reconciler) UpsertAnalysis(ctx context.Context, candidateID, postingID string, analysis *jobs.Analysis, content *profile.Profile) (*jobs.Application, error) {
	if analysis == nil {
		return nil, apperrors.InvalidInput("analysis is required", nil)
	}

	ctx, span := tracer.Start(ctx, "reconcile.UpsertAnalysis")
	span.SetAttributes(telemetry.String("posting.id", postingID), telemetry.String("candidate.id", candidateID))
	defer span.End()

	posting, err := r.posting(ctx, postingID)
	if err != nil {
		return nil, err
	}

	existing, err := r.application(ctx, candidateID, postingID)
	if err != nil {
		return nil, err
	}

	return r.upsertAnalysis(ctx, posting, existing, candidateID, analysis, content)
}

func (r *Reconciler) upsertAnalysis(ctx context.Context, posting *jobs.Posting, existing *jobs.Application, candidateID string, analysis *jobs.Analysis, content *profile.Profile) (*jobs.Application, error) {
	log := logger.WithApplication(r.logger, candidateID, posting.ID)

	pinned := *analysis
	final, drifted := ReconcileScore(posting.MatchScore, analysis.Score)
	if drifted {
		log.Debug("pinning analysis score to posting score", zap.Int("oracle_score", analysis.Score), zap.Int("score", final))
	}
	pinned.Score = final

	status := jobs.StatusDraft
	if existing != nil {
		status = jobs.Advance(existing.Status, jobs.StatusDraft)
	}

	app, err := r.store.UpsertApplication(ctx, &jobs.Application{
		CandidateID:     candidateID,
		PostingID:       posting.ID,
		Status:          status,
		MatchAnalysis:   &pinned,
		TailoredContent: content,
	})
	if err != nil {
		return nil, r.storeError("save analysis", err)
	}

	r.syncPosting(ctx, posting, pinned.Score, pinned.Summary, log)

	log.Info("analysis saved", zap.Int("score", pinned.Score), zap.String("status", string(app.Status)))
	return app, nil
}

// syncPosting keeps the listing view in line with the analysis. Failures are logged.
func (r *Reconciler) syncPosting(ctx context.Context, posting *jobs.Posting, score int, reason string, log *zap.Logger) {
	if reason == "" {
		reason = posting.MatchReason
	}
	if posting.MatchScore == score && posting.MatchReason == reason {
		return
	}

	if err := r.store.UpdatePostingScore(ctx, posting.ID, score, reason); err != nil {
		log.Warn("syncing posting score failed", zap.Error(err))
		return
	}
	posting.MatchScore = score
	posting.MatchReason = reason
}

// SaveTailored stores tailored content on the candidate's application. score is the
// tailored content's score; it only matters with PromoteTailoredScore, where a higher
// score becomes the posting score. The store re-pins every candidate's stored
// analysis on the posting in the same update.
func (r *Reconciler) SaveTailored(ctx context.Context, candidateID, postingID string, content *profile.Profile, score int) (*jobs.Application, error) {
	if content == nil {
		return nil, apperrors.InvalidInput("content is required", nil)
	}

	ctx, span := tracer.Start(ctx, "reconcile.SaveTailored")
	span.SetAttributes(telemetry.String("posting.id", postingID), telemetry.String("candidate.id", candidateID))
	defer span.End()

	log := logger.WithApplication(r.logger, candidateID, postingID)

	posting, err := r.posting(ctx, postingID)
	if err != nil {
		return nil, err
	}

	existing, err := r.application(ctx, candidateID, postingID)
	if err != nil {
		return nil, err
	}

	update := &jobs.Application{
		CandidateID:     candidateID,
		PostingID:       postingID,
		Status:          jobs.StatusDraft,
		TailoredContent: content,
	}
	if existing != nil {
		update.Status = jobs.Advance(existing.Status, jobs.StatusDraft)
	}

	score = jobs.ClampScore(score)
	if r.policy.PromoteTailoredScore && score > posting.MatchScore {
		if err := r.store.UpdatePostingScore(ctx, postingID, score, tailoredReason); err != nil {
			return nil, r.storeError("promote tailored score", err)
		}
		log.Info("posting score promoted", zap.Int("from", posting.MatchScore), zap.Int("to", score))
		posting.MatchScore = score
	}

	app, err := r.store.UpsertApplication(ctx, update)
	if err != nil {
		return nil, r.storeError("save tailored content", err)
	}

	log.Info("tailored content saved", zap.Int("score", score), zap.String("status", string(app.Status)))
	return app, nil
}

// MarkApplied moves the application to applied in one store call, creating the row
// when needed. Repeated and concurrent calls leave exactly one applied row.
func (r *Reconciler) MarkApplied(ctx context.Context, candidateID, postingID string) (*jobs.Application, error) {
	ctx, span := tracer.Start(ctx, "reconcile.MarkApplied")
	span.SetAttributes(telemetry.String("posting.id", postingID), telemetry.String("candidate.id", candidateID))
	defer span.End()

	app, err := r.store.MarkApplied(ctx, candidateID, postingID)
	if err != nil {
		span.RecordError(err)
		return nil, r.storeError("mark applied", err)
	}

	log := logger.WithApplication(r.logger, candidateID, postingID)
	log.Info("application marked applied")

	err = r.publisher.Publish(ctx, events.Event{
		Type:        events.TypeApplicationApplied,
		PostingID:   postingID,
		CandidateID: candidateID,
	})
	if err != nil {
		log.Warn("publishing application event failed", zap.Error(err))
	}

	return app, nil
}

func (r *Reconciler) posting(ctx context.Context, id string) (*jobs.Posting, error) {
	posting, err := r.store.GetPosting(ctx, id)
	if err != nil {
		return nil, r.storeError(fmt.Sprintf("load posting %q", id), err)
	}
	return posting, nil
}

func (r *Reconciler) profile(ctx context.Context, candidateID string) (*profile.Profile, error) {
	p, err := r.store.LatestProfile(ctx, candidateID)
	if err != nil {
		return nil, r.storeError(fmt.Sprintf("load profile for candidate %q", candidateID), err)
	}
	return p, nil
}

// application returns nil without error when the row does not exist yet.
func (r *Reconciler) application(ctx context.Context, candidateID, postingID string) (*jobs.Application, error) {
	app, err := r.store.GetApplication(ctx, candidateID, postingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	return app, nil
}

func (r *Reconciler) storeError(message string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound(message, err)
	case errors.Is(err, store.ErrDuplicate):
		return apperrors.ConstraintViolation(message, err)
	default:
		return fmt.Errorf("%s: %w", message, err)
	}
}
