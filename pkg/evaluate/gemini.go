package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/fluentvoice/fluentvoice/pkg/core"
)

const defaultScoringModel = "gemini-2.0-flash"

const scoringPrompt = `You are an English language proficiency assessor.
Evaluate the learner's English from this tutoring session transcript.
Only lines labelled "User:" are the learner's speech; "Tutor:" lines are
context. Score vocabulary, grammar, and pronunciation from 0 to 100 based on
word choice, sentence structure, and transcription artifacts that suggest
unclear speech. Rate fluency as Beginner, Intermediate, Advanced, or Native.
Write two or three sentences of encouraging, specific feedback.

Transcript:
%s`

// Config configures the scoring client.
type Config struct {
	// APIKey authorizes the generative model call. Required.
	APIKey string

	// Model overrides the default scoring model.
	Model string

	Logger *slog.Logger
}

// resultSchema constrains the model to the evaluation JSON shape.
var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overallScore":       {Type: genai.TypeInteger},
		"vocabularyScore":    {Type: genai.TypeInteger},
		"grammarScore":       {Type: genai.TypeInteger},
		"pronunciationScore": {Type: genai.TypeInteger},
		"fluencyRating": {
			Type: genai.TypeString,
			Enum: []string{FluencyBeginner, FluencyIntermediate, FluencyAdvanced, FluencyNative},
		},
		"feedback": {Type: genai.TypeString},
	},
	Required: []string{
		"overallScore", "vocabularyScore", "grammarScore",
		"pronunciationScore", "fluencyRating", "feedback",
	},
}

// New creates an Evaluator backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, core.NewConfigError("missing service credential (set FLUENT_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = defaultScoringModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewEvaluationError("create scoring client", err)
	}

	return &Evaluator{
		logger: logger,
		generate: func(ctx context.Context, transcript string) (string, error) {
			return generateScore(ctx, client, model, transcript)
		},
	}, nil
}

func generateScore(ctx context.Context, client *genai.Client, model, transcript string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(scoringPrompt, transcript), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema,
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("scoring response has no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", fmt.Errorf("scoring response has no text")
	}
	return text, nil
}
