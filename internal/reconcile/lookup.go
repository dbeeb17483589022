package reconcile

import (
	"context"
	"fmt"

	"github.com/spigell/job-radar/internal/dedup"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
)

// Match is what a browser page url resolves to.
type Match struct {
	Found     bool             `json:"found"`
	PostingID string           `json:"posting_id,omitempty"`
	Score     int              `json:"score"`
	Resume    *profile.Profile `json:"resume,omitempty"`
}

// Lookup resolves a page url to the candidate's application for that posting.
// Urls are matched loosely (see dedup.LooseMatch). The score goes through
// ReconcileScore, so a stale stored analysis never outranks the posting. Found is
// false when no posting matches or the candidate has no application for it.
func (r *Reconciler) Lookup(ctx context.Context, candidateID, url string) (*Match, error) {
	postings, err := r.store.ListPostings(ctx, store.Query{ScoreAbove: -1})
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}

	urls := make([]string, 0, len(postings))
	byURL := make(map[string]*jobs.Posting, len(postings))
	for _, p := range postings {
		urls = append(urls, p.URL)
		byURL[p.URL] = p
	}

	matched, ok := dedup.LooseMatch(url, urls)
	if !ok {
		return &Match{}, nil
	}
	posting := byURL[matched]

	app, err := r.application(ctx, candidateID, posting.ID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return &Match{PostingID: posting.ID}, nil
	}

	score := jobs.ClampScore(posting.MatchScore)
	if app.MatchAnalysis != nil {
		score, _ = ReconcileScore(posting.MatchScore, app.MatchAnalysis.Score)
	}

	return &Match{
		Found:     true,
		PostingID: posting.ID,
		Score:     score,
		Resume:    app.TailoredContent,
	}, nil
}
