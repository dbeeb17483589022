package jobs_test

import (
	"testing"

	"github.com/spigell/job-radar/internal/jobs"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"draft", "applied"} {
		got, err := jobs.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}

	for _, s := range []string{"", "APPLIED", "rejected"} {
		if _, err := jobs.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to jobs.Status
		want     bool
	}{
		{"", jobs.StatusDraft, true},
		{"", jobs.StatusApplied, true},
		{jobs.StatusDraft, jobs.StatusApplied, true},
		{jobs.StatusDraft, jobs.StatusDraft, true},
		{jobs.StatusApplied, jobs.StatusApplied, true},
		{jobs.StatusApplied, jobs.StatusDraft, false},
		{jobs.StatusApplied, "", false},
	}

	for _, tc := range cases {
		if got := jobs.IsTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("IsTransitionAllowed(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAdvanceNeverDowngrades(t *testing.T) {
	cases := []struct {
		current, next, want jobs.Status
	}{
		{"", "", jobs.StatusDraft},
		{"", jobs.StatusDraft, jobs.StatusDraft},
		{"", jobs.StatusApplied, jobs.StatusApplied},
		{jobs.StatusDraft, jobs.StatusDraft, jobs.StatusDraft},
		{jobs.StatusDraft, jobs.StatusApplied, jobs.StatusApplied},
		{jobs.StatusApplied, jobs.StatusDraft, jobs.StatusApplied},
		{jobs.StatusApplied, "", jobs.StatusApplied},
		{jobs.StatusApplied, jobs.StatusApplied, jobs.StatusApplied},
	}

	for _, tc := range cases {
		if got := jobs.Advance(tc.current, tc.next); got != tc.want {
			t.Errorf("Advance(%q, %q) = %q, want %q", tc.current, tc.next, got, tc.want)
		}
	}
}

func TestNewPostingIDIsDeterministic(t *testing.T) {
	a := jobs.NewPostingID("https://x.com/job/1")
	b := jobs.NewPostingID("https://x.com/job/1")
	c := jobs.NewPostingID("https://x.com/job/2")

	if a != b {
		t.Fatalf("expected stable id, got %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different ids for different urls")
	}
}

func TestClampScore(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 61: 61, 100: 100, 140: 100} {
		if got := jobs.ClampScore(in); got != want {
			t.Errorf("ClampScore(%d) = %d, want %d", in, got, want)
		}
	}
}
