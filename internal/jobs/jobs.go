package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-radar/internal/profile"
)

// postingNamespace seeds the deterministic posting identifiers.
var postingNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// NewPostingID derives the posting id from its normalized url, so that the same
// listing gets the same id no matter which run ingests it.
func NewPostingID(normalizedURL string) string {
	return uuid.NewSHA1(postingNamespace, []byte(normalizedURL)).String()
}

// RawPosting is one feed item before scoring. It is never persisted.
type RawPosting struct {
	SourceID   string
	Title      string
	Link       string
	RawContent string
}

type Posting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	URL             string    `json:"url"`
	SourceID        string    `json:"source_id"`
	DescriptionHTML string    `json:"description_html"`
	SalaryMin       *int      `json:"salary_min,omitempty"`
	SalaryMax       *int      `json:"salary_max,omitempty"`
	TechStack       []string  `json:"tech_stack"`
	Seniority       string    `json:"seniority,omitempty"`
	MatchScore      int       `json:"match_score"`
	MatchReason     string    `json:"match_reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// Analysis explains a posting's match score for one candidate.
type Analysis struct {
	Score            int      `json:"score"`
	Summary          string   `json:"summary"`
	MatchingKeywords []string `json:"matching_keywords"`
	MissingKeywords  []string `json:"missing_keywords"`
	KeyFindings      []string `json:"key_findings"`
	FixSuggestions   []string `json:"fix_suggestions"`
}

type Application struct {
	CandidateID     string           `json:"candidate_id"`
	PostingID       string           `json:"posting_id"`
	Status          Status           `json:"status"`
	MatchAnalysis   *Analysis        `json:"match_analysis,omitempty"`
	TailoredContent *profile.Profile `json:"tailored_content,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ClampScore keeps a score inside [0, 100].
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
