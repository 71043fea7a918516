package question

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/quizlock/internal/model"
	"google.golang.org/genai"
)

// Generator produces the raw structured-output text for a batch of questions.
type Generator interface {
	Generate(ctx context.Context, count int) (string, error)
}

// GeminiConfig configures the Gemini-backed generator.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiGenerator asks a Gemini model for questions using a response schema.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds a generator. It performs no network I/O.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate issues exactly one generateContent call.
func (g *GeminiGenerator) Generate(ctx context.Context, count int) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(count)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Prompt is the fixed Icelandic instruction for a batch of count questions.
func Prompt(count int) string {
	return fmt.Sprintf(
		"Búðu til %d erfiðar og krefjandi spurningar á íslensku (Icelandic) sem reyna á almenna þekkingu, sögu eða landafræði. "+
			"Spurningarnar eiga að vera krossaspurningar með %d svarmöguleikum. "+
			"Reyndu að hafa þær á erfiðleikastigi '%s' eða '%s'.",
		count, model.OptionCount, model.DifficultyMedium, model.DifficultyHard,
	)
}

// ResponseSchema requires an array of {question, options, correctAnswerIndex, difficulty}.
func ResponseSchema() *genai.Schema {
	optionCount := int64(model.OptionCount)
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {Type: genai.TypeString},
				"options": {
					Type:     genai.TypeArray,
					Items:    &genai.Schema{Type: genai.TypeString},
					MinItems: &optionCount,
					MaxItems: &optionCount,
				},
				"correctAnswerIndex": {Type: genai.TypeInteger},
				"difficulty": {
					Type: genai.TypeString,
					Enum: []string{string(model.DifficultyMedium), string(model.DifficultyHard)},
				},
			},
			Required: []string{"question", "options", "correctAnswerIndex", "difficulty"},
		},
	}
}
