package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/config"
	"motion-trends/shared/logger"
)

// ErrEmptyBrief is returned when the model produced no usable brief.
var ErrEmptyBrief = errors.New("empty trend brief")

// promptVideos is how many videos of each top list the prompt includes.
const promptVideos = 5

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Briefer asks Gemini for a short narrative about a snapshot.
type Briefer struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

func NewBriefer(ctx context.Context, cfg *config.AIConfig, log logger.Logger) (*Briefer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Briefer{
		models: client.Models,
		model:  cfg.Model,
		log:    log,
	}, nil
}

func (b *Briefer) Brief(ctx context.Context, snapshot *models.AnalyticsSnapshot) (*models.TrendBrief, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buildBriefPrompt(snapshot), genai.RoleUser),
	}

	result, err := b.models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate trend brief: %w", err)
	}

	responseText := result.Text()
	if strings.TrimSpace(responseText) == "" {
		return nil, ErrEmptyBrief
	}

	return b.parseBriefResponse(responseText)
}

func buildBriefPrompt(s *models.AnalyticsSnapshot) string {
	var keywords []string
	for _, kt := range s.KeywordTrends {
		keywords = append(keywords, fmt.Sprintf("%s (%d)", kt.Keyword, kt.Count))
	}

	top := pipeline.DeriveTopLists(s, promptVideos, promptVideos)

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are an analyst writing for motion designers. Summarize this week's motion graphics video trends.

SNAPSHOT:
Total videos: %d (YouTube %d, Vimeo %d)
Total views: %s
Average engagement score: %s
Keyword trends: %s

MOST VIEWED:
`,
		s.TotalVideos,
		s.Summary.YouTubeVideos,
		s.Summary.VimeoVideos,
		pipeline.FormatNumber(s.Summary.TotalViews),
		pipeline.FormatDecimal(s.Summary.AvgEngagement),
		strings.Join(keywords, ", "),
	)
	writeVideoLines(&sb, top.TopVideos)
	sb.WriteString("\nMOST ENGAGING:\n")
	writeVideoLines(&sb, top.TopEngagement)

	sb.WriteString(`
Respond with JSON only, in this format:
{
  "headline": "One short sentence naming the dominant trend",
  "summary": "2-3 sentences on what is popular and why",
  "highlights": ["notable video or pattern", "..."],
  "opportunities": ["content idea a creator could act on", "..."]
}`)
	return sb.String()
}

func writeVideoLines(sb *strings.Builder, videos []models.VideoRecord) {
	for i, v := range videos {
		fmt.Fprintf(sb, "%d. %s by %s [%s] views=%s engagement=%s\n",
			i+1, truncateString(v.Title, 120), v.Channel, v.Platform,
			pipeline.FormatNumber(v.ViewCount), pipeline.FormatDecimal(v.EngagementScore))
	}
}

func (b *Briefer) parseBriefResponse(response string) (*models.TrendBrief, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("no JSON found in response: %s", truncateString(response, 200))
	}

	jsonStr := response[startIdx : endIdx+1]

	var brief models.TrendBrief
	if err := json.Unmarshal([]byte(jsonStr), &brief); err != nil {
		sanitized := sanitizeJSON(jsonStr)
		if sanitizedErr := json.Unmarshal([]byte(sanitized), &brief); sanitizedErr != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w (sanitized version also failed: %v)", err, sanitizedErr)
		}
		b.log.Warn("Had to sanitize malformed brief JSON")
	}

	if brief.Headline == "" && brief.Summary == "" {
		return nil, ErrEmptyBrief
	}
	return &brief, nil
}

// sanitizeJSON escapes stray quotes inside single-line string values, the
// most common defect in model-written JSON.
func sanitizeJSON(jsonStr string) string {
	lines := strings.Split(jsonStr, "\n")
	sanitizedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx != -1 && strings.Contains(line, "\"") {
			beforeColon := line[:colonIdx+1]
			afterColon := strings.TrimSpace(line[colonIdx+1:])

			if strings.HasPrefix(afterColon, "\"") {
				lastQuoteIdx := strings.LastIndex(afterColon, "\"")
				if lastQuoteIdx > 0 {
					content := afterColon[1:lastQuoteIdx]
					content = strings.ReplaceAll(content, `\"`, `"`)
					content = strings.ReplaceAll(content, `"`, `\"`)
					line = beforeColon + " \"" + content + "\"" + afterColon[lastQuoteIdx+1:]
				}
			}
		}

		sanitizedLines = append(sanitizedLines, line)
	}

	return strings.Join(sanitizedLines, "\n")
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength]) + "..."
}
