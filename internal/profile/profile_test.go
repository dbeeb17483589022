package profile

import (
	"strings"
	"testing"
)

const sampleProfile = `{
  "contact": {"fullName": "Ada Lovelace", "email": "ada@example.com"},
  "summary": "Backend engineer",
  "workExperience": [
    {"company": "Acme", "role": "Engineer", "startDate": "2020-01", "current": true, "description": "Go services"},
    {"company": "Globex", "role": "Intern", "startDate": "2019-01", "endDate": "2019-06", "current": false, "description": "Scripts"}
  ],
  "education": [{"school": "MIT", "degree": "BSc"}],
  "projects": [{"name": "radar", "description": "feeds"}],
  "skills": "Go, Postgres, ,Kubernetes"
}`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := p.Counts()
	if counts.WorkExperience != 2 || counts.Education != 1 || counts.Projects != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	skills := p.SkillList()
	if len(skills) != 3 || skills[2] != "Kubernetes" {
		t.Fatalf("unexpected skills: %v", skills)
	}

	if !strings.Contains(p.JSON(), `"fullName":"Ada Lovelace"`) {
		t.Fatalf("expected contact in json, got %s", p.JSON())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: sampleProfile},
		{name: "short name", input: `{"contact": {"fullName": "A", "email": ""}}`, wantErr: true},
		{name: "bad email", input: `{"contact": {"fullName": "Ada", "email": "nope"}}`, wantErr: true},
		{name: "empty email allowed", input: `{"contact": {"fullName": "Ada", "email": ""}}`},
		{name: "experience without company", input: `{"contact": {"fullName": "Ada"}, "workExperience": [{"role": "Engineer"}]}`, wantErr: true},
		{name: "malformed json", input: `{"contact":`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	var nilProfile *Profile
	if err := nilProfile.Validate(); err == nil {
		t.Fatalf("expected error for nil profile")
	}
}

func TestCompare(t *testing.T) {
	original, err := Parse([]byte(sampleProfile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	same := *original
	if diffs := Compare(original, &same); len(diffs) != 0 {
		t.Fatalf("expected no diffs, got %v", diffs)
	}

	trimmed := *original
	trimmed.WorkExperience = trimmed.WorkExperience[:1]
	trimmed.Projects = nil

	diffs := Compare(original, &trimmed)
	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %v", diffs)
	}
	if diffs[0] != "workExperience entries changed from 2 to 1" {
		t.Fatalf("unexpected diff: %q", diffs[0])
	}
	if diffs[1] != "projects entries changed from 1 to 0" {
		t.Fatalf("unexpected diff: %q", diffs[1])
	}

	if diffs := Compare(original, nil); len(diffs) != 3 {
		t.Fatalf("expected every section to differ against nil, got %v", diffs)
	}
}
