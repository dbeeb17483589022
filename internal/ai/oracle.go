// Package ai is the client side of the scoring oracle: it builds prompts, calls a
// text generator and parses its untrusted replies into typed results.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/utils"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200

	// OracleErrorReason is the reason attached to the zero score used when a listing
	// could not be scored.
	OracleErrorReason = "oracle error"
)

// Generator turns a prompt into raw model text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// ListingAssessment is the structured view of one scored job listing.
type ListingAssessment struct {
	Company   string
	SalaryMin *int
	SalaryMax *int
	TechStack []string
	Seniority string
	Score     int
	Reason    string
	CleanHTML string
}

// ListingVerdict is either a parsed assessment or a failure. On failure Assessment
// holds the zero score sentinel, so callers can treat it as a regular low score.
type ListingVerdict struct {
	Assessment ListingAssessment
	Failure    error
}

func (v ListingVerdict) Degraded() bool {
	return v.Failure != nil
}

// Rewrite is a tailored copy of a profile and the list of edits the oracle reports.
type Rewrite struct {
	Content *profile.Profile
	Changes []string
}

type Options struct {
	Provider     string
	Model        string
	Timeout      time.Duration
	MaxLogLength int
	// Throttle gates ScoreListing only.
	Throttle *Throttle
}

type Client struct {
	generator Generator
	throttle  *Throttle
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

func NewClient(generator Generator, opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	return &Client{
		generator: generator,
		throttle:  opts.Throttle,
		timeout:   opts.Timeout,
		maxLogLen: opts.MaxLogLength,
		logger:    logger.WithOracle(log, opts.Provider, opts.Model),
	}
}

// ScoreListing rates a raw feed item against the candidate profile. It waits on the
// shared throttle first and never returns an error: transport and parse failures
// come back as a degraded verdict carrying the zero score sentinel.
func (c *Client) ScoreListing(ctx context.Context, raw jobs.RawPosting, p *profile.Profile) ListingVerdict {
	if err := c.throttle.Wait(ctx); err != nil {
		return failedVerdict(fmt.Errorf("throttle: %w", err))
	}

	text, err := c.call(ctx, "score listing", buildListingPrompt(raw, p),
		zap.String("source", raw.SourceID),
		zap.String("link", raw.Link),
	)
	if err != nil {
		return failedVerdict(err)
	}

	assessment, err := parseListing(text)
	if err != nil {
		c.logger.Debug("unparseable listing assessment",
			zap.String("link", raw.Link),
			zap.String("response_preview", utils.TruncateForLog(text, c.maxLogLen)),
			zap.Error(err),
		)
		return failedVerdict(err)
	}

	return ListingVerdict{Assessment: *assessment}
}

func failedVerdict(err error) ListingVerdict {
	return ListingVerdict{
		Assessment: ListingAssessment{Score: 0, Reason: OracleErrorReason},
		Failure:    err,
	}
}

// Analyze asks the oracle to explain truthScore for the posting. The returned
// analysis carries the score the oracle reported; pinning it is the caller's job.
func (c *Client) Analyze(ctx context.Context, posting *jobs.Posting, p *profile.Profile, truthScore int) (*jobs.Analysis, error) {
	text, err := c.call(ctx, "analyze", buildAnalysisPrompt(posting, p, truthScore), zap.String("posting_id", posting.ID))
	if err != nil {
		return nil, err
	}
	return parseAnalysis(text, truthScore)
}

// Rewrite tailors the profile to the posting.
func (c *Client) Rewrite(ctx context.Context, posting *jobs.Posting, p *profile.Profile) (*Rewrite, error) {
	text, err := c.call(ctx, "rewrite", buildRewritePrompt(posting, p), zap.String("posting_id", posting.ID))
	if err != nil {
		return nil, err
	}
	return parseRewrite(text)
}

// Rescore rates content against the posting.
func (c *Client) Rescore(ctx context.Context, posting *jobs.Posting, content *profile.Profile) (int, error) {
	text, err := c.call(ctx, "rescore", buildRescorePrompt(posting, content), zap.String("posting_id", posting.ID))
	if err != nil {
		return 0, err
	}
	return parseScore(text)
}

// ExtractProfile turns plain resume text, usually pulled out of a PDF, into a
// validated profile.
func (c *Client) ExtractProfile(ctx context.Context, resumeText string) (*profile.Profile, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, apperrors.InvalidInput("resume text is empty", nil)
	}

	text, err := c.call(ctx, "extract profile", buildExtractPrompt(resumeText),
		zap.Int("resume_length", utf8.RuneCountInString(resumeText)),
	)
	if err != nil {
		return nil, err
	}
	return parseProfile(text)
}

func (c *Client) call(ctx context.Context, task, prompt string, fields ...zap.Field) (string, error) {
	if c.generator == nil {
		return "", apperrors.Internal("oracle generator is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("oracle request", append(fields,
		zap.String("task", task),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)...)

	text, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", task, err)
	}

	c.logger.Debug("oracle response", append(fields,
		zap.String("task", task),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, c.maxLogLen)),
	)...)

	return text, nil
}
