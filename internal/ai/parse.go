package ai

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
)

type listingWire struct {
	Company   string   `mapstructure:"company"`
	TechStack []string `mapstructure:"tech_stack"`
	Seniority string   `mapstructure:"seniority"`
	Reason    string   `mapstructure:"match_reason"`
	CleanHTML string   `mapstructure:"clean_html"`
}

type analysisWire struct {
	Summary          string   `mapstructure:"summary"`
	MatchingKeywords []string `mapstructure:"matching_keywords"`
	MissingKeywords  []string `mapstructure:"missing_keywords"`
	KeyFindings      []string `mapstructure:"key_findings"`
	FixSuggestions   []string `mapstructure:"fix_suggestions"`
}

type rewriteWire struct {
	Content profile.Profile `mapstructure:"content"`
	Changes []string        `mapstructure:"changes"`
}

func parseListing(raw string) (*ListingAssessment, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var wire listingWire
	if err := weakDecode(data, &wire); err != nil {
		return nil, apperrors.OracleUnparseable("decode listing assessment", err)
	}

	score, ok := coerceScore(data["match_score"])
	if !ok {
		return nil, apperrors.OracleUnparseable("listing assessment has no numeric match_score", nil)
	}

	return &ListingAssessment{
		Company:   strings.TrimSpace(wire.Company),
		SalaryMin: coerceOptionalInt(data["salary_min"]),
		SalaryMax: coerceOptionalInt(data["salary_max"]),
		TechStack: compact(wire.TechStack),
		Seniority: strings.TrimSpace(wire.Seniority),
		Score:     score,
		Reason:    strings.TrimSpace(wire.Reason),
		CleanHTML: strings.TrimSpace(wire.CleanHTML),
	}, nil
}

// parseAnalysis keeps whatever score the oracle reported, or fallback when it reported
// none. The reconciler decides which score survives.
func parseAnalysis(raw string, fallback int) (*jobs.Analysis, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var wire analysisWire
	if err := weakDecode(data, &wire); err != nil {
		return nil, apperrors.OracleUnparseable("decode analysis", err)
	}

	score, ok := coerceScore(data["score"])
	if !ok {
		score = fallback
	}

	return &jobs.Analysis{
		Score:            score,
		Summary:          strings.TrimSpace(wire.Summary),
		MatchingKeywords: compact(wire.MatchingKeywords),
		MissingKeywords:  compact(wire.MissingKeywords),
		KeyFindings:      compact(wire.KeyFindings),
		FixSuggestions:   compact(wire.FixSuggestions),
	}, nil
}

func parseRewrite(raw string) (*Rewrite, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	content, ok := data["content"].(map[string]any)
	if !ok {
		return nil, apperrors.OracleUnparseable("rewrite has no content object", nil)
	}

	var wire rewriteWire
	if err := weakDecode(map[string]any{"content": content, "changes": data["changes"]}, &wire); err != nil {
		return nil, apperrors.OracleUnparseable("decode rewrite", err)
	}

	return &Rewrite{
		Content: &wire.Content,
		Changes: compact(wire.Changes),
	}, nil
}

// parseProfile decodes a profile extracted from free resume text. The result has to
// pass schema validation before anyone stores it.
func parseProfile(raw string) (*profile.Profile, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var p profile.Profile
	if err := weakDecode(data, &p); err != nil {
		return nil, apperrors.OracleUnparseable("decode extracted profile", err)
	}
	if err := p.Validate(); err != nil {
		return nil, apperrors.OracleUnparseable("extracted profile does not match the resume schema", err)
	}
	return &p, nil
}

func parseScore(raw string) (int, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return 0, err
	}

	score, ok := coerceScore(data["score"])
	if !ok {
		return 0, apperrors.OracleUnparseable("score response has no numeric score", nil)
	}
	return score, nil
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, apperrors.OracleUnparseable("empty oracle response", nil)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, apperrors.OracleUnparseable("parse oracle response", err)
	}
	if data == nil {
		return nil, apperrors.OracleUnparseable("oracle response is not an object", nil)
	}
	return data, nil
}

func weakDecode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       joinStringListHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// joinStringListHook lets a list of strings land in a string field, joined with
// ", ". Models often return skills as an array even when asked for a comma
// separated list.
func joinStringListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() != reflect.Slice {
		return data, nil
	}
	items, ok := data.([]any)
	if !ok {
		return data, nil
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return data, nil
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// coerceScore accepts numbers and numeric strings (a trailing % is allowed) and
// clamps the result to [0, 100].
func coerceScore(v any) (int, bool) {
	if s, ok := v.(string); ok {
		v = strings.TrimSuffix(strings.TrimSpace(s), "%")
	}

	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return jobs.ClampScore(int(math.Round(f))), true
}

func coerceOptionalInt(v any) *int {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func compact(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
