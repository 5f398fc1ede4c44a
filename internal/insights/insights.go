// Package insights asks a language model for a short qualitative review of
// an analysis. It is optional: the pipeline runs without it and records a
// failure here as a non-fatal step error.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"

	"repoknow/internal/logging"
	"repoknow/internal/model"
)

// Generator produces insights for an analysis.
type Generator interface {
	Generate(ctx context.Context, analysis *model.ComprehensiveAnalysis) (*model.Insights, error)
}

const systemPrompt = `You review software repositories. Answer with a single JSON object with the keys
"summary" (string, at most 3 sentences), "strengths", "concerns" and "suggestions" (arrays of short strings,
at most 5 each). Base every statement on the facts provided.`

// OpenAIGenerator calls an OpenAI compatible chat completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *logging.AppLogger
}

// NewOpenAIGenerator creates a generator. baseURL may be empty to use the
// OpenAI default; the logger may be nil.
func NewOpenAIGenerator(apiKey, baseURL, modelName string, logger *logging.AppLogger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("insights api key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("insights model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
		logger: logger,
	}, nil
}

type insightsPayload struct {
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Concerns    []string `json:"concerns"`
	Suggestions []string `json:"suggestions"`
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, analysis *model.ComprehensiveAnalysis) (*model.Insights, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(analysis)},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("insights request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("insights response had no choices")
	}
	if g.logger != nil {
		g.logger.Debug("Insights received", "model", resp.Model, "finish_reason", resp.Choices[0].FinishReason,
			"tokens", resp.Usage.TotalTokens)
	}

	insights, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	insights.Model = g.model
	return insights, nil
}

// ParseResponse decodes the model's JSON answer. Markdown code fences around
// the object are tolerated.
func ParseResponse(content string) (*model.Insights, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload insightsPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse insights response: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, fmt.Errorf("insights response has no summary")
	}
	return &model.Insights{
		Summary:     strings.TrimSpace(payload.Summary),
		Strengths:   payload.Strengths,
		Concerns:    payload.Concerns,
		Suggestions: payload.Suggestions,
	}, nil
}

const maxPromptList = 15

// BuildPrompt renders the facts of an analysis the model is asked about.
func BuildPrompt(a *model.ComprehensiveAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", a.Repository.Name)
	if a.Repository.RemoteURL != "" {
		fmt.Fprintf(&b, "Remote: %s\n", a.Repository.RemoteURL)
	}
	fmt.Fprintf(&b, "Files: %d\n", len(a.Files))

	stats := a.LanguageStats()
	languages := make([]string, 0, len(stats))
	for lang := range stats {
		languages = append(languages, lang)
	}
	slices.SortFunc(languages, func(x, y string) int {
		if stats[x] != stats[y] {
			return stats[y] - stats[x]
		}
		return strings.Compare(x, y)
	})
	parts := make([]string, 0, len(languages))
	for _, lang := range limit(languages) {
		parts = append(parts, fmt.Sprintf("%s (%d)", lang, stats[lang]))
	}
	fmt.Fprintf(&b, "Languages: %s\n", orNone(parts))

	s := a.Structure
	fmt.Fprintf(&b, "Architecture layers: %s\n", orNone(s.Architecture.Layers))
	fmt.Fprintf(&b, "Architecture patterns: %s\n", orNone(s.Architecture.Patterns))
	cs := s.CodingStandards
	fmt.Fprintf(&b, "Naming: files=%s functions=%s classes=%s\n", cs.Naming.Files, cs.Naming.Functions, cs.Naming.Classes)
	fmt.Fprintf(&b, "Imports: style=%s ordering=%s\n", cs.ImportStyle, cs.ImportOrdering)
	fmt.Fprintf(&b, "Error handling: %s\nTest framework: %s\n", cs.ErrorHandling, cs.TestFramework)
	fmt.Fprintf(&b, "Dependencies: %d runtime, %d dev\n", len(s.Dependencies.Runtime), len(s.Dependencies.Dev))
	fmt.Fprintf(&b, "Entry points: %s\n", orNone(limit(s.EntryPoints)))

	linters := make([]string, 0, len(s.Linting))
	for _, l := range s.Linting {
		linters = append(linters, l.Tool)
	}
	fmt.Fprintf(&b, "Lint tools: %s\n", orNone(linters))

	categories := []model.FunctionCategory{
		model.CategoryUtility, model.CategoryHelper, model.CategoryService, model.CategoryComponent,
		model.CategoryHandler, model.CategoryMiddleware, model.CategoryOther,
	}
	counts := make([]string, 0, len(categories))
	for _, c := range categories {
		if n := len(a.FunctionsByCategory(c)); n > 0 {
			counts = append(counts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	fmt.Fprintf(&b, "Functions: %d total (%s), %d exported\n", len(a.Functions), orNone(counts), len(a.ExportedFunctions()))
	fmt.Fprintf(&b, "HTTP routes: %d\n", len(a.Routes))

	titles := make([]string, 0, len(a.Documentation))
	for _, d := range a.Documentation {
		titles = append(titles, d.Title)
	}
	fmt.Fprintf(&b, "Documentation: %s\n", orNone(limit(titles)))
	return b.String()
}

func limit(items []string) []string {
	if len(items) > maxPromptList {
		return items[:maxPromptList]
	}
	return items
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
