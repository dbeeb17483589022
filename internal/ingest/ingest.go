// Package ingest drives one ingestion pass: every configured feed, a bounded batch of
// items per feed, dedup, scoring, the threshold filter and persistence.
//
// A pass never fails because of a single feed or item. Fetch, lookup, scoring and
// write failures are logged, counted in the feed's stats and skipped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/dedup"
	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/feed"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
	"github.com/spigell/job-radar/internal/telemetry"
)

const (
	DefaultItemsPerFeed = 5
	DefaultThreshold    = 60
	defaultItemTimeout  = 2 * time.Minute

	unknownCompany = "Unknown"
)

var tracer = telemetry.GetTracer("job-radar/ingest")

type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) (iter.Seq[jobs.RawPosting], error)
}

type Scorer interface {
	ScoreListing(ctx context.Context, raw jobs.RawPosting, p *profile.Profile) ai.ListingVerdict
}

type Config struct {
	Sources []feed.Source
	// ItemsPerFeed caps how many items of each feed are looked at per pass.
	ItemsPerFeed int
	// Threshold is the score a listing has to exceed to be stored. It can only be
	// raised: values below DefaultThreshold are replaced by it.
	Threshold int
	// Concurrency is the number of feeds processed at once. Oracle calls stay
	// serialized by the scorer's shared throttle.
	Concurrency int
	// ItemTimeout bounds one item once it has started. Items already in flight
	// ignore the run deadline and finish within this budget.
	ItemTimeout time.Duration
}

type Deps struct {
	Fetcher   Fetcher
	Scorer    Scorer
	Postings  store.Postings
	Publisher events.Publisher
	Logger    *zap.Logger
}

// FeedStats describes what happened to one feed during a pass.
type FeedStats struct {
	Source     string
	Seen       int
	Skipped    int
	Duplicates int
	Rejected   int
	Degraded   int
	Saved      int
	Failed     int
	// Abandoned is set when the run deadline stopped the feed early or before it started.
	Abandoned bool
	Err       error
}

type Result struct {
	TotalNew int
	Feeds    []FeedStats
}

type Orchestrator struct {
	cfg       Config
	fetcher   Fetcher
	gate      *dedup.Gate
	scorer    Scorer
	postings  store.Postings
	publisher events.Publisher
	logger    *zap.Logger
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.ItemsPerFeed <= 0 {
		cfg.ItemsPerFeed = DefaultItemsPerFeed
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Threshold < DefaultThreshold {
		if cfg.Threshold > 0 {
			deps.Logger.Warn("threshold below the minimum, using the minimum",
				zap.Int("threshold", cfg.Threshold),
				zap.Int("minimum", DefaultThreshold),
			)
		}
		cfg.Threshold = DefaultThreshold
	}

	return &Orchestrator{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		gate:      dedup.NewGate(deps.Postings),
		scorer:    deps.Scorer,
		postings:  deps.Postings,
		publisher: deps.Publisher,
		logger:    deps.Logger,
	}
}

// Run performs one ingestion pass for the candidate profile p, which may be nil.
// Cancelling ctx stops new feeds and new items from starting; items already being
// processed complete. The only error returned is for an unusable configuration.
func (o *Orchestrator) Run(ctx context.Context, p *profile.Profile) (*Result, error) {
	if len(o.cfg.Sources) == 0 {
		return nil, apperrors.InvalidInput("no feed sources configured", nil)
	}
	if o.fetcher == nil || o.scorer == nil || o.postings == nil {
		return nil, apperrors.InvalidInput("fetcher, scorer and postings store are required", nil)
	}

	ctx, span := tracer.Start(ctx, "ingest.Run")
	defer span.End()

	o.logger.Info("starting ingestion pass",
		zap.Int("feeds", len(o.cfg.Sources)),
		zap.Int("items_per_feed", o.cfg.ItemsPerFeed),
		zap.Int("threshold", o.cfg.Threshold),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	stats := make([]FeedStats, len(o.cfg.Sources))

	if o.cfg.Concurrency == 1 {
		for i, src := range o.cfg.Sources {
			stats[i] = o.runFeed(ctx, src, p)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for i, src := range o.cfg.Sources {
			g.Go(func() error {
				stats[i] = o.runFeed(ctx, src, p)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := &Result{Feeds: stats}
	for _, s := range stats {
		result.TotalNew += s.Saved
	}

	span.SetAttributes(telemetry.Int("ingest.total_new", result.TotalNew))
	o.logger.Info("ingestion pass finished", zap.Int("total_new", result.TotalNew))

	return result, nil
}

func (o *Orchestrator) runFeed(ctx context.Context, src feed.Source, p *profile.Profile) FeedStats {
	stats := FeedStats{Source: src.Label}
	log := o.logger.With(zap.String("source", src.Label))

	if err := ctx.Err(); err != nil {
		stats.Abandoned = true
		stats.Err = err
		log.Warn("skipping feed", zap.String("reason", "run deadline reached"))
		return stats
	}

	ctx, span := tracer.Start(ctx, "ingest.Feed")
	span.SetAttributes(telemetry.String("feed.source", src.Label), telemetry.String("feed.url", src.URL))
	defer span.End()

	items, err := o.fetcher.Fetch(ctx, src)
	if err != nil {
		stats.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed unavailable")
		log.Warn("feed unavailable", zap.Error(err))
		return stats
	}

	for raw := range items {
		if stats.Seen >= o.cfg.ItemsPerFeed {
			break
		}
		if err := ctx.Err(); err != nil {
			stats.Abandoned = true
			stats.Err = err
			log.Warn("abandoning feed", zap.String("reason", "run deadline reached"), zap.Int("seen", stats.Seen))
			break
		}

		stats.Seen++
		o.processItem(ctx, raw, p, &stats, log)
	}

	span.SetAttributes(
		telemetry.Int("feed.seen", stats.Seen),
		telemetry.Int("feed.saved", stats.Saved),
	)

	log.Info("feed summary",
		zap.Int("seen", stats.Seen),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("rejected", stats.Rejected),
		zap.Int("degraded", stats.Degraded),
		zap.Int("failed", stats.Failed),
		zap.Int("saved", stats.Saved),
	)

	return stats
}

// processItem runs one item to completion on a context detached from the run deadline.
func (o *Orchestrator) processItem(runCtx context.Context, raw jobs.RawPosting, p *profile.Profile, stats *FeedStats, log *zap.Logger) {
	if raw.Link == "" {
		stats.Skipped++
		log.Debug("skipping item without link", zap.String("title", raw.Title))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), o.cfg.ItemTimeout)
	defer cancel()

	url := dedup.NormalizeURL(raw.Link)
	log = log.With(zap.String("url", url))

	exists, err := o.gate.Exists(ctx, url)
	if err != nil {
		stats.Failed++
		log.Warn("dedup lookup failed, skipping item", zap.Error(err))
		return
	}
	if exists {
		stats.Duplicates++
		log.Debug("skipping known posting")
		return
	}

	verdict := o.scorer.ScoreListing(ctx, raw, p)
	if verdict.Degraded() {
		stats.Degraded++
		log.Warn("oracle could not score item", zap.String("title", raw.Title), zap.Error(verdict.Failure))
	}

	assessment := verdict.Assessment
	if assessment.Score <= o.cfg.Threshold {
		if !verdict.Degraded() {
			stats.Rejected++
		}
		log.Debug("score below threshold", zap.Int("score", assessment.Score), zap.Int("threshold", o.cfg.Threshold))
		return
	}

	posting := newPosting(url, raw, assessment)
	if err := o.postings.InsertPosting(ctx, posting); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			stats.Duplicates++
			log.Debug("posting stored concurrently", zap.Error(apperrors.ConstraintViolation("insert posting", err)))
			return
		}
		stats.Failed++
		log.Error("saving posting failed", zap.Error(err))
		return
	}

	stats.Saved++
	log.Info("saved posting", zap.String("title", posting.Title), zap.Int("score", posting.MatchScore))

	err = o.publisher.Publish(ctx, events.Event{
		Type:      events.TypePostingCreated,
		PostingID: posting.ID,
		Title:     posting.Title,
		URL:       posting.URL,
		Score:     posting.MatchScore,
	})
	if err != nil {
		log.Warn("publishing posting event failed", zap.Error(err))
	}
}

func newPosting(url string, raw jobs.RawPosting, a ai.ListingAssessment) *jobs.Posting {
	company := a.Company
	if company == "" {
		company = unknownCompany
	}

	description := a.CleanHTML
	if description == "" {
		description = raw.RawContent
	}

	return &jobs.Posting{
		ID:              jobs.NewPostingID(url),
		Title:           raw.Title,
		Company:         company,
		URL:             url,
		SourceID:        raw.SourceID,
		DescriptionHTML: description,
		SalaryMin:       a.SalaryMin,
		SalaryMax:       a.SalaryMax,
		TechStack:       a.TechStack,
		Seniority:       a.Seniority,
		MatchScore:      a.Score,
		MatchReason:     a.Reason,
	}
}

// String renders a one-line summary of the pass.
func (r *Result) String() string {
	failed := 0
	for _, f := range r.Feeds {
		if f.Err != nil && !f.Abandoned {
			failed++
		}
	}
	return fmt.Sprintf("%d new postings from %d feeds (%d unavailable)", r.TotalNew, len(r.Feeds), failed)
}
