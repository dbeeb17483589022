package ai

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/utils"
)

// Rune caps applied to prompt payloads.
const (
	listingJobLimit     = 6000
	listingProfileLimit = 3000
	analysisJobLimit    = 3000
	analysisResumeLimit = 3000
	rewriteJobLimit     = 4000
	rescoreJobLimit     = 3000
	rescoreResumeLimit  = 3000
	extractResumeLimit  = 12000

	noResume = "NO RESUME PROVIDED"
)

var (
	//go:embed prompts/listing.md
	listingTemplate string
	//go:embed prompts/analysis.md
	analysisTemplate string
	//go:embed prompts/rewrite.md
	rewriteTemplate string
	//go:embed prompts/rescore.md
	rescoreTemplate string
	//go:embed prompts/extract.md
	extractTemplate string
)

func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func buildListingPrompt(raw jobs.RawPosting, p *profile.Profile) string {
	resume := noResume
	if text := p.JSON(); text != "" {
		resume = utils.Truncate(text, listingProfileLimit)
	}

	jobText := raw.RawContent
	if raw.Title != "" {
		jobText = raw.Title + "\n" + jobText
	}

	return render(listingTemplate, map[string]string{
		"JOB_TEXT":    utils.Truncate(jobText, listingJobLimit),
		"RESUME_JSON": resume,
	})
}

func buildAnalysisPrompt(posting *jobs.Posting, p *profile.Profile, score int) string {
	return render(analysisTemplate, map[string]string{
		"SCORE":       strconv.Itoa(score),
		"JOB_TEXT":    utils.Truncate(posting.DescriptionHTML, analysisJobLimit),
		"RESUME_JSON": utils.Truncate(profileOrEmpty(p), analysisResumeLimit),
	})
}

// buildRewritePrompt embeds the whole profile: cutting it would drop entries the
// rewrite has to preserve.
func buildRewritePrompt(posting *jobs.Posting, p *profile.Profile) string {
	return render(rewriteTemplate, map[string]string{
		"JOB_TITLE":   posting.Title,
		"COMPANY":     posting.Company,
		"JOB_TEXT":    utils.Truncate(posting.DescriptionHTML, rewriteJobLimit),
		"RESUME_JSON": profileOrEmpty(p),
	})
}

func buildRescorePrompt(posting *jobs.Posting, p *profile.Profile) string {
	return render(rescoreTemplate, map[string]string{
		"JOB_TEXT":    utils.Truncate(posting.DescriptionHTML, rescoreJobLimit),
		"RESUME_JSON": utils.Truncate(profileOrEmpty(p), rescoreResumeLimit),
	})
}

func profileOrEmpty(p *profile.Profile) string {
	if text := p.JSON(); text != "" {
		return text
	}
	return "{}"
}

func buildExtractPrompt(resumeText string) string {
	return render(extractTemplate, map[string]string{
		"RESUME_TEXT": utils.Truncate(resumeText, extractResumeLimit),
	})
}
