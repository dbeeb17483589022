package tailor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-radar/internal/ai"
	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/store/memory"
)

type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", errors.New("unexpected call")
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

const (
	candidateID = "cand-1"
	postingURL  = "https://x.com/job/1"
)

var master = &profile.Profile{
	Contact: profile.Contact{FullName: "Ada Lovelace"},
	WorkExperience: []profile.Experience{
		{Company: "Acme", Role: "Engineer", Description: "Go services"},
		{Company: "Globex", Role: "Developer", Description: "Billing"},
		{Company: "Initech", Role: "Intern", Description: "Reports"},
	},
	Skills: "Go, Postgres",
}

func seed(t *testing.T) (*memory.Store, string) {
	t.Helper()

	st := memory.New()
	posting := &jobs.Posting{
		ID:              jobs.NewPostingID(postingURL),
		Title:           "Backend Engineer",
		Company:         "Acme",
		URL:             postingURL,
		DescriptionHTML: "<p>Go, Postgres</p>",
		MatchScore:      85,
	}
	if err := st.InsertPosting(context.Background(), posting); err != nil {
		t.Fatalf("seed posting: %v", err)
	}
	if err := st.SaveProfile(context.Background(), candidateID, master); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return st, posting.ID
}

const threeEntries = `{
  "content": {
    "contact": {"fullName": "Ada Lovelace"},
    "workExperience": [
      {"company": "Acme", "role": "Engineer", "description": "Built Go services on Postgres"},
      {"company": "Globex", "role": "Developer", "description": "Billing"},
      {"company": "Initech", "role": "Intern", "description": "Reports"}
    ],
    "skills": "Postgres, Go"
  },
  "changes": ["Reworded Acme description", "Reordered skills"]
}`

const twoEntries = `{
  "content": {
    "contact": {"fullName": "Ada Lovelace"},
    "workExperience": [
      {"company": "Acme", "role": "Engineer", "description": "Built Go services"},
      {"company": "Globex", "role": "Developer", "description": "Billing"}
    ]
  },
  "changes": ["Dropped the internship"]
}`

func TestTailorPreservesEntries(t *testing.T) {
	st, postingID := seed(t)
	gen := &scriptedGenerator{responses: []string{threeEntries, `{"score": 91}`}}

	result, err := New(ai.NewClient(gen, ai.Options{}, nil), st, st, nil).Tailor(context.Background(), postingID, candidateID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(result.Content.WorkExperience); got != 3 {
		t.Fatalf("expected 3 work experience entries, got %d", got)
	}
	if result.Score != 91 {
		t.Fatalf("expected score 91, got %d", result.Score)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %v", result.Changes)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}

	if len(gen.prompts) != 2 {
		t.Fatalf("expected rewrite and score calls, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Backend Engineer at Acme") {
		t.Fatalf("rewrite prompt misses the posting: %q", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[1], "Built Go services on Postgres") {
		t.Fatalf("score prompt must carry the rewritten content")
	}
}

func TestTailorWarnsOnDroppedEntries(t *testing.T) {
	st, postingID := seed(t)
	gen := &scriptedGenerator{responses: []string{twoEntries, `{"score": 70}`}}
	core, observed := observer.New(zapcore.WarnLevel)

	result, err := New(ai.NewClient(gen, ai.Options{}, nil), st, st, zap.New(core)).Tailor(context.Background(), postingID, candidateID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "workExperience entries changed from 3 to 2"
	if len(result.Warnings) != 1 || result.Warnings[0] != want {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	entries := observed.FilterMessage("rewrite did not preserve profile entries").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["detail"]; got != want {
		t.Fatalf("unexpected log detail %v", got)
	}
}

func TestTailorNotFound(t *testing.T) {
	st, postingID := seed(t)
	gen := &scriptedGenerator{}
	tl := New(ai.NewClient(gen, ai.Options{}, nil), st, st, nil)

	cases := []struct {
		name        string
		postingID   string
		candidateID string
	}{
		{name: "missing posting", postingID: "nope", candidateID: candidateID},
		{name: "missing profile", postingID: postingID, candidateID: "nobody"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tl.Tailor(context.Background(), tc.postingID, tc.candidateID)
			if !apperrors.Is(err, apperrors.ErrTypeNotFound) {
				t.Fatalf("expected NotFound, got %v", err)
			}
		})
	}

	if len(gen.prompts) != 0 {
		t.Fatalf("oracle must not be called, got %d calls", len(gen.prompts))
	}
}

func TestTailorPropagatesOracleFailures(t *testing.T) {
	cases := []struct {
		name      string
		responses []string
		err       error
		errType   apperrors.ErrorType
	}{
		{name: "transport", err: errors.New("503 unavailable")},
		{name: "unparseable rewrite", responses: []string{"not json"}, errType: apperrors.ErrTypeOracleUnparseable},
		{name: "rewrite without content", responses: []string{`{"changes": []}`}, errType: apperrors.ErrTypeOracleUnparseable},
		{name: "unparseable score", responses: []string{threeEntries, `{"score": "high"}`}, errType: apperrors.ErrTypeOracleUnparseable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, postingID := seed(t)
			gen := &scriptedGenerator{responses: tc.responses, err: tc.err}

			result, err := New(ai.NewClient(gen, ai.Options{}, nil), st, st, nil).Tailor(context.Background(), postingID, candidateID)
			if err == nil {
				t.Fatalf("expected error, got result %+v", result)
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("expected wrapped transport error, got %v", err)
			}
			if tc.errType != "" && !apperrors.Is(err, tc.errType) {
				t.Fatalf("expected %s, got %v", tc.errType, err)
			}
		})
	}
}

func TestRescore(t *testing.T) {
	st, postingID := seed(t)
	gen := &scriptedGenerator{responses: []string{`{"score": "77%"}`}}
	tl := New(ai.NewClient(gen, ai.Options{}, nil), st, st, nil)

	score, err := tl.Rescore(context.Background(), postingID, master)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 77 {
		t.Fatalf("expected 77, got %d", score)
	}

	if postings, applications := st.Len(); postings != 1 || applications != 0 {
		t.Fatalf("rescore must not persist anything, got %d postings %d applications", postings, applications)
	}

	if _, err := tl.Rescore(context.Background(), postingID, nil); !apperrors.Is(err, apperrors.ErrTypeInvalidInput) {
		t.Fatalf("expected InvalidInput for nil content, got %v", err)
	}
	if _, err := tl.Rescore(context.Background(), "nope", master); !apperrors.Is(err, apperrors.ErrTypeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
