package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

const promptTemplate = `You are a Senior DevOps Engineer. Analyze the following %s configuration file.

Please provide:
1. A brief summary of what this service does based on the config.
2. Identify any potential security risks (e.g., exposed ports, default passwords, root privileges).
3. Suggest 1-2 optimizations or best practices.

Keep the response concise and formatted in Markdown.

Configuration:
` + "```" + `
%s
` + "```" + `
`

// Prompt builds the review prompt sent to the model.
func Prompt(content string, fileType model.ConfigType) string {
	return fmt.Sprintf(promptTemplate, fileType, content)
}

// generator is the slice of the genai Models service Gemini uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey string
	Model  string
	Logger *slog.Logger
}

// Gemini analyzes content with Google's Gemini models.
type Gemini struct {
	models generator
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini client. An empty API key yields an Unavailable
// client rather than an error so callers can still run without analysis.
func NewGemini(ctx context.Context, cfg GeminiConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable{Reason: "API Key is missing. Please configure your environment variables to use AI analysis."}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models generator, cfg GeminiConfig) *Gemini {
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{models: models, model: name, logger: logger}
}

// Analyze sends the review prompt and returns the model's text.
func (g *Gemini) Analyze(ctx context.Context, content string, fileType model.ConfigType) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}

	g.logger.Debug("requesting analysis", "model", g.model, "type", fileType, "bytes", len(content))
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(Prompt(content, fileType)), nil)
	if err != nil {
		g.logger.Warn("analysis request failed", "model", g.model, "error", err)
		return "", &kindError{kind: ErrTransportFailure, msg: "gemini request failed", err: err}
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
