// Package memory is an in-process record store. It backs tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store"
)

type appKey struct {
	candidateID string
	postingID   string
}

type Store struct {
	mu           sync.RWMutex
	postings     map[string]*jobs.Posting
	urls         map[string]string
	profiles     map[string]*profile.Profile
	applications map[appKey]*jobs.Application

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		postings:     make(map[string]*jobs.Posting),
		urls:         make(map[string]string),
		profiles:     make(map[string]*profile.Profile),
		applications: make(map[appKey]*jobs.Application),
		now:          time.Now,
	}
}

func (s *Store) Close() {}

func (s *Store) PostingExists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[url]
	return ok, nil
}

func (s *Store) InsertPosting(_ context.Context, posting *jobs.Posting) error {
	if posting == nil {
		return fmt.Errorf("posting is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[posting.URL]; ok {
		return fmt.Errorf("insert posting %q: %w", posting.URL, store.ErrDuplicate)
	}
	if _, ok := s.postings[posting.ID]; ok {
		return fmt.Errorf("insert posting %q: %w", posting.ID, store.ErrDuplicate)
	}

	stored := copyPosting(posting)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	posting.CreatedAt = stored.CreatedAt

	s.postings[stored.ID] = stored
	s.urls[stored.URL] = stored.ID
	return nil
}

func (s *Store) GetPosting(_ context.Context, id string) (*jobs.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posting, ok := s.postings[id]
	if !ok {
		return nil, fmt.Errorf("posting %q: %w", id, store.ErrNotFound)
	}
	return copyPosting(posting), nil
}

func (s *Store) UpdatePostingScore(_ context.Context, id string, score int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posting, ok := s.postings[id]
	if !ok {
		return fmt.Errorf("posting %q: %w", id, store.ErrNotFound)
	}
	posting.MatchScore = score
	posting.MatchReason = reason

	for key, app := range s.applications {
		if key.postingID == id && app.MatchAnalysis != nil {
			app.MatchAnalysis.Score = score
		}
	}
	return nil
}

func (s *Store) ListPostings(_ context.Context, q store.Query) ([]*jobs.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterPostings(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := make([]*jobs.Posting, 0, len(matched))
	for _, posting := range matched {
		result = append(result, copyPosting(posting))
	}
	return result, nil
}

func (s *Store) CountPostings(_ context.Context, q store.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterPostings(q)), nil
}

func (s *Store) filterPostings(q store.Query) []*jobs.Posting {
	matched := make([]*jobs.Posting, 0, len(s.postings))
	for _, posting := range s.postings {
		if posting.MatchScore > q.ScoreAbove {
			matched = append(matched, posting)
		}
	}
	return matched
}

func (s *Store) LatestProfile(_ context.Context, candidateID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[candidateID]
	if !ok {
		return nil, fmt.Errorf("profile for candidate %q: %w", candidateID, store.ErrNotFound)
	}
	return copyProfile(p), nil
}

func (s *Store) SaveProfile(_ context.Context, candidateID string, p *profile.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[candidateID] = copyProfile(p)
	return nil
}

func (s *Store) GetApplication(_ context.Context, candidateID, postingID string) (*jobs.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[appKey{candidateID, postingID}]
	if !ok {
		return nil, fmt.Errorf("application %s/%s: %w", candidateID, postingID, store.ErrNotFound)
	}
	return copyApplication(app), nil
}

func (s *Store) UpsertApplication(_ context.Context, app *jobs.Application) (*jobs.Application, error) {
	if app == nil {
		return nil, fmt.Errorf("application is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postings[app.PostingID]; !ok {
		return nil, fmt.Errorf("posting %q: %w", app.PostingID, store.ErrNotFound)
	}

	key := appKey{app.CandidateID, app.PostingID}
	now := s.now()

	existing, ok := s.applications[key]
	if !ok {
		stored := copyApplication(app)
		stored.Status = jobs.Advance("", app.Status)
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.applications[key] = stored
		return copyApplication(stored), nil
	}

	existing.Status = jobs.Advance(existing.Status, app.Status)
	if app.MatchAnalysis != nil {
		existing.MatchAnalysis = copyAnalysis(app.MatchAnalysis)
	}
	if app.TailoredContent != nil {
		existing.TailoredContent = copyProfile(app.TailoredContent)
	}
	existing.UpdatedAt = now

	return copyApplication(existing), nil
}

func (s *Store) MarkApplied(_ context.Context, candidateID, postingID string) (*jobs.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postings[postingID]; !ok {
		return nil, fmt.Errorf("posting %q: %w", postingID, store.ErrNotFound)
	}

	key := appKey{candidateID, postingID}
	now := s.now()

	app, ok := s.applications[key]
	if !ok {
		app = &jobs.Application{
			CandidateID: candidateID,
			PostingID:   postingID,
			CreatedAt:   now,
		}
		s.applications[key] = app
	}
	app.Status = jobs.Advance(app.Status, jobs.StatusApplied)
	app.UpdatedAt = now

	return copyApplication(app), nil
}

func (s *Store) ListApplications(_ context.Context, candidateID string, status jobs.Status) ([]*jobs.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.Application
	for key, app := range s.applications {
		if key.candidateID != candidateID {
			continue
		}
		if status != "" && app.Status != status {
			continue
		}
		result = append(result, copyApplication(app))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].PostingID < result[j].PostingID
	})
	return result, nil
}

// Len returns the number of stored postings and applications.
func (s *Store) Len() (postings, applications int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.postings), len(s.applications)
}

func copyPosting(p *jobs.Posting) *jobs.Posting {
	c := *p
	c.TechStack = append([]string(nil), p.TechStack...)
	if p.SalaryMin != nil {
		v := *p.SalaryMin
		c.SalaryMin = &v
	}
	if p.SalaryMax != nil {
		v := *p.SalaryMax
		c.SalaryMax = &v
	}
	return &c
}

func copyAnalysis(a *jobs.Analysis) *jobs.Analysis {
	if a == nil {
		return nil
	}
	c := *a
	c.MatchingKeywords = append([]string(nil), a.MatchingKeywords...)
	c.MissingKeywords = append([]string(nil), a.MissingKeywords...)
	c.KeyFindings = append([]string(nil), a.KeyFindings...)
	c.FixSuggestions = append([]string(nil), a.FixSuggestions...)
	return &c
}

func copyProfile(p *profile.Profile) *profile.Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.WorkExperience = append([]profile.Experience(nil), p.WorkExperience...)
	c.Education = append([]profile.Education(nil), p.Education...)
	c.Projects = append([]profile.Project(nil), p.Projects...)
	return &c
}

func copyApplication(a *jobs.Application) *jobs.Application {
	c := *a
	c.MatchAnalysis = copyAnalysis(a.MatchAnalysis)
	c.TailoredContent = copyProfile(a.TailoredContent)
	return &c
}
