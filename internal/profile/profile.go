// Package profile holds the candidate profile: the structured resume content that both
// pipelines read and that the tailoring pipeline rewrites into a copy.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Contact struct {
	FullName  string `json:"fullName" mapstructure:"fullName" validate:"min=2"`
	Email     string `json:"email" mapstructure:"email" validate:"omitempty,email"`
	LinkedIn  string `json:"linkedin,omitempty" mapstructure:"linkedin"`
	Portfolio string `json:"portfolio,omitempty" mapstructure:"portfolio"`
	Location  string `json:"location,omitempty" mapstructure:"location"`
	Phone     string `json:"phone,omitempty" mapstructure:"phone"`
}

type Experience struct {
	ID          string `json:"id,omitempty" mapstructure:"id"`
	Company     string `json:"company" mapstructure:"company" validate:"required"`
	Role        string `json:"role" mapstructure:"role" validate:"required"`
	StartDate   string `json:"startDate,omitempty" mapstructure:"startDate"`
	EndDate     string `json:"endDate,omitempty" mapstructure:"endDate"`
	Current     bool   `json:"current" mapstructure:"current"`
	Description string `json:"description" mapstructure:"description"`
}

type Education struct {
	ID        string `json:"id,omitempty" mapstructure:"id"`
	School    string `json:"school" mapstructure:"school" validate:"required"`
	Degree    string `json:"degree" mapstructure:"degree" validate:"required"`
	StartDate string `json:"startDate,omitempty" mapstructure:"startDate"`
	EndDate   string `json:"endDate,omitempty" mapstructure:"endDate"`
}

type Project struct {
	ID          string `json:"id,omitempty" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name" validate:"required"`
	Description string `json:"description" mapstructure:"description"`
	Link        string `json:"link,omitempty" mapstructure:"link"`
}

// Profile is one version of a candidate's resume content.
type Profile struct {
	Contact        Contact      `json:"contact" mapstructure:"contact"`
	Summary        string       `json:"summary,omitempty" mapstructure:"summary"`
	WorkExperience []Experience `json:"workExperience,omitempty" mapstructure:"workExperience" validate:"dive"`
	Education      []Education  `json:"education,omitempty" mapstructure:"education" validate:"dive"`
	Projects       []Project    `json:"projects,omitempty" mapstructure:"projects" validate:"dive"`
	// Skills is a comma separated list.
	Skills string `json:"skills,omitempty" mapstructure:"skills"`
}

// Counts is the number of entries in each list section.
type Counts struct {
	WorkExperience int
	Education      int
	Projects       int
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the profile against the resume schema.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}

func (p *Profile) Counts() Counts {
	if p == nil {
		return Counts{}
	}
	return Counts{
		WorkExperience: len(p.WorkExperience),
		Education:      len(p.Education),
		Projects:       len(p.Projects),
	}
}

// SkillList splits Skills on commas and drops empty entries.
func (p *Profile) SkillList() []string {
	if p == nil {
		return nil
	}
	var skills []string
	for _, skill := range strings.Split(p.Skills, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// JSON renders the profile the way it is embedded in oracle prompts.
// A nil profile renders as an empty string.
func (p *Profile) JSON() string {
	if p == nil {
		return ""
	}
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Parse decodes and validates a JSON profile document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Compare reports, per section, how the entry counts of rewritten differ from original.
// An empty result means every section kept its number of entries.
func Compare(original, rewritten *Profile) []string {
	before := original.Counts()
	after := rewritten.Counts()

	var diffs []string
	check := func(section string, want, got int) {
		if want != got {
			diffs = append(diffs, fmt.Sprintf("%s entries changed from %d to %d", section, want, got))
		}
	}

	check("workExperience", before.WorkExperience, after.WorkExperience)
	check("projects", before.Projects, after.Projects)
	check("education", before.Education, after.Education)

	return diffs
}
