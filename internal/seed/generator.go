// ABOUTME: Sample event generator for filling a month with realistic demo data.
// ABOUTME: Uses OpenAI when an API key is configured and falls back to static templates.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/2389/monthcal/internal/event"
)

// Generator creates event drafts using OpenAI or falls back to static data.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string
	logger *slog.Logger
}

// NewGenerator creates a generator. An empty apiKey selects the static templates.
func NewGenerator(apiKey, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = "gpt-5-mini"
	}
	g := &Generator{model: model, logger: logger.With("component", "seed")}

	if apiKey != "" {
		g.client = openai.NewClient(apiKey)
		g.useAI = true
		g.logger.Info("OpenAI API key found, using AI-generated events", "model", model)
	} else {
		g.logger.Info("no OpenAI API key, using static fallback events")
	}
	return g
}

// UsesAI reports whether drafts come from OpenAI.
func (g *Generator) UsesAI() bool {
	return g.useAI
}

// EventData is the shape requested from the model.
type EventData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Category    string `json:"category"`
}

func (d EventData) draft() event.Draft {
	return event.Draft{
		Name:        d.Name,
		Date:        d.Date,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Description: d.Description,
		Category:    strings.ToLower(d.Category),
	}
}

// Generate returns count drafts dated inside year/month. AI output that fails
// validation or lands outside the month is dropped; if nothing usable comes
// back the static templates are used instead.
func (g *Generator) Generate(ctx context.Context, year int, month time.Month, count int) ([]event.Draft, error) {
	if count <= 0 {
		return nil, nil
	}
	if !g.useAI {
		return StaticDrafts(year, month, count), nil
	}

	g.logger.Info("generating events via AI", "count", count, "year", year, "month", int(month))
	data, err := g.generateEvents(ctx, year, month, count)
	if err != nil {
		g.logger.Warn("AI generation failed, falling back to static data", "err", err)
		return StaticDrafts(year, month, count), nil
	}

	drafts := usableDrafts(data, year, month)
	if len(drafts) == 0 {
		g.logger.Warn("AI returned no usable events, falling back to static data", "returned", len(data))
		return StaticDrafts(year, month, count), nil
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}
	g.logger.Info("AI generation complete", "usable", len(drafts), "returned", len(data))
	return drafts, nil
}

func usableDrafts(data []EventData, year int, month time.Month) []event.Draft {
	var drafts []event.Draft
	for _, d := range data {
		draft := d.draft()
		e, err := draft.Build()
		if err != nil || !e.Date.InMonth(year, month) {
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

func (g *Generator) generateEvents(ctx context.Context, year int, month time.Month, count int) ([]EventData, error) {
	first := event.NewDate(year, month, 1)
	last := first.AddDays(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day() - 1)

	prompt := fmt.Sprintf(`Generate %d realistic calendar events for one person between %s and %s. Include:
- Team meetings and standups
- 1:1s and client calls
- Personal appointments (doctor, dentist, car service)
- Social events (lunch, coffee, dinner)
- Focus blocks and workouts

Return as JSON array with objects containing: name, description, date (YYYY-MM-DD), start_time (HH:MM, 24-hour), end_time (HH:MM, 24-hour), category (one of work, personal, other).
Events on the same day must not overlap. end_time must be later than start_time on the same day.
Distribute events throughout the month. Each description should be one short sentence.`, count, first, last)

	return callOpenAI[[]EventData](ctx, g.client, g.model, prompt)
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
