// Package store describes the record store both pipelines read from and write to.
package store

import (
	"context"
	"errors"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// Query filters posting listings.
type Query struct {
	// ScoreAbove keeps postings whose match score is strictly greater than the value.
	ScoreAbove int
	Limit      int
	Offset     int
}

type Postings interface {
	// PostingExists reports whether a posting with the given normalized url is stored.
	PostingExists(ctx context.Context, url string) (bool, error)
	// InsertPosting fails with ErrDuplicate when the url is already stored.
	InsertPosting(ctx context.Context, posting *jobs.Posting) error
	GetPosting(ctx context.Context, id string) (*jobs.Posting, error)
	// UpdatePostingScore also sets the score of every stored analysis on the posting,
	// so analyses never disagree with the posting they explain.
	UpdatePostingScore(ctx context.Context, id string, score int, reason string) error
	// ListPostings returns postings newest first.
	ListPostings(ctx context.Context, q Query) ([]*jobs.Posting, error)
	CountPostings(ctx context.Context, q Query) (int, error)
}

type Profiles interface {
	LatestProfile(ctx context.Context, candidateID string) (*profile.Profile, error)
	// SaveProfile replaces the candidate's current profile.
	SaveProfile(ctx context.Context, candidateID string, p *profile.Profile) error
}

type Applications interface {
	GetApplication(ctx context.Context, candidateID, postingID string) (*jobs.Application, error)
	// UpsertApplication inserts or refreshes an application keyed by (candidate, posting).
	// Nil analysis or content keep the stored values and the stored status is never
	// lowered: a row that is applied stays applied.
	UpsertApplication(ctx context.Context, app *jobs.Application) (*jobs.Application, error)
	// MarkApplied moves the application to applied, creating it when missing.
	// The posting must exist.
	MarkApplied(ctx context.Context, candidateID, postingID string) (*jobs.Application, error)
	// ListApplications returns the candidate's applications, most recently updated first.
	// An empty status lists every application.
	ListApplications(ctx context.Context, candidateID string, status jobs.Status) ([]*jobs.Application, error)
}

// Store is the full record store.
type Store interface {
	Postings
	Profiles
	Applications
	Close()
}
