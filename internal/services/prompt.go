package services

import (
	"fmt"
	"strings"

	"recapstudio-backend/internal/models"
)

// PromptContext is everything the narration prompt is built from.
type PromptContext struct {
	Description string
	Genre       string
	Movie       *models.MovieInfo
	Styles      []models.StyleAnalysis
}

// PromptBuilder holds the fixed instructions appended to every prompt.
type PromptBuilder struct {
	Language string
	// Extra is appended to the requirements list, one line per entry.
	Extra []string
}

func NewPromptBuilder(language, extra string) PromptBuilder {
	if language == "" {
		language = "Hebrew"
	}
	b := PromptBuilder{Language: language}
	for _, line := range strings.Split(extra, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.Extra = append(b.Extra, line)
		}
	}
	return b
}

// Build layers the description, the enrichment digest and the style hint in
// that order, followed by the fixed requirements.
func (pb PromptBuilder) Build(pc PromptContext) string {
	var b strings.Builder

	// Layer 1: Role
	b.WriteString(fmt.Sprintf("You are a professional video recap scriptwriter. Create an engaging %s voice-over script for a video recap.\n\n", pb.Language))

	// Layer 2: What the user wants narrated
	b.WriteString(strings.TrimSpace(pc.Description))
	b.WriteString("\n\n")

	// Layer 3: Enrichment digest
	if digest := movieDigest(pc.Movie); digest != "" {
		b.WriteString(digest)
		b.WriteString("\n\n")
	}

	// Layer 4: Style hint from the top analysed video
	if hint := styleHint(pc.Styles); hint != "" {
		b.WriteString(hint)
		b.WriteString("\n\n")
	}

	// Layer 5: Requirements
	b.WriteString("Requirements:\n")
	b.WriteString(fmt.Sprintf("- Write in %s language\n", pb.Language))
	b.WriteString("- Create an exciting, cinematic tone\n")
	b.WriteString("- Include only the most crucial moments\n")
	b.WriteString("- Keep it concise (3-4 sentences)\n")
	if pc.Genre != "" {
		b.WriteString(fmt.Sprintf("- Use dramatic pacing appropriate for a %s\n", pc.Genre))
	} else {
		b.WriteString("- Use dramatic pacing appropriate for the genre\n")
	}
	for _, line := range pb.Extra {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("- NO introductory text and NO closing remarks, just the script\n\n")
	b.WriteString("Generate the script:\n")

	return b.String()
}

func movieDigest(m *models.MovieInfo) string {
	if m == nil || (m.Plot == "" && len(m.KeyScenes) == 0) {
		return ""
	}
	digest := "Movie context: " + m.Plot
	if len(m.KeyScenes) > 0 {
		digest += ". Key scenes: " + strings.Join(m.KeyScenes, ", ")
	}
	return digest
}

func styleHint(styles []models.StyleAnalysis) string {
	if len(styles) == 0 {
		return ""
	}
	top := styles[0]
	return fmt.Sprintf("Style inspiration: %s editing with %ds clips", top.EditingStyle, top.AverageClipLengthSeconds)
}
