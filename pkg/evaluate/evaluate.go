// Package evaluate scores a finished tutoring session from its transcript.
// Scoring runs through a generative model returning structured JSON; every
// failure path substitutes a fallback so the session always completes and
// persists a result.
package evaluate

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/fluentvoice/fluentvoice/pkg/core"
)

// Fluency ratings the scorer may assign.
const (
	FluencyBeginner     = "Beginner"
	FluencyIntermediate = "Intermediate"
	FluencyAdvanced     = "Advanced"
	FluencyNative       = "Native"
)

// Result is one session evaluation. Scores are 0-100.
type Result struct {
	OverallScore       int    `json:"overallScore"`
	VocabularyScore    int    `json:"vocabularyScore"`
	GrammarScore       int    `json:"grammarScore"`
	PronunciationScore int    `json:"pronunciationScore"`
	FluencyRating      string `json:"fluencyRating"`
	Feedback           string `json:"feedback"`
}

// minTranscriptLen is the shortest transcript worth scoring. Anything below
// it means the learner barely spoke, so the low fallback applies without a
// model call.
const minTranscriptLen = 10

// lowFallback is the result for sessions with no usable speech.
func lowFallback() Result {
	return Result{
		OverallScore:       10,
		VocabularyScore:    10,
		GrammarScore:       10,
		PronunciationScore: 10,
		FluencyRating:      FluencyBeginner,
		Feedback:           "We couldn't hear enough speech to evaluate this session. Try a longer conversation next time.",
	}
}

// neutralFallback is substituted when the scorer itself fails.
func neutralFallback() Result {
	return Result{
		OverallScore:       60,
		VocabularyScore:    60,
		GrammarScore:       60,
		PronunciationScore: 60,
		FluencyRating:      FluencyIntermediate,
		Feedback:           "Evaluation was unavailable for this session, so a provisional score was recorded.",
	}
}

// generateFunc produces the raw JSON evaluation for a transcript. The
// production implementation calls the generative model; tests substitute it.
type generateFunc func(ctx context.Context, transcript string) (string, error)

// Evaluator scores session transcripts.
type Evaluator struct {
	generate generateFunc
	logger   *slog.Logger
}

// Evaluate scores the transcript. It never fails: scorer errors and
// malformed responses are logged and replaced with a neutral fallback, and
// transcripts too short to score get the low fallback without invoking the
// scorer at all.
func (e *Evaluator) Evaluate(ctx context.Context, transcript string) Result {
	if e == nil {
		return neutralFallback()
	}
	if len(strings.TrimSpace(transcript)) < minTranscriptLen {
		return lowFallback()
	}

	raw, err := e.generate(ctx, transcript)
	if err != nil {
		e.logger.Error("session evaluation failed", "error", core.NewEvaluationError("scoring request failed", err))
		return neutralFallback()
	}

	var result Result
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		e.logger.Error("session evaluation failed", "error", core.NewEvaluationError("malformed scoring response", err))
		return neutralFallback()
	}
	return normalize(result)
}

// normalize clamps scores into range, validates the fluency rating, and
// recomputes the overall score whenever the scorer returned an inconsistent
// or zero value. The overall score is defined as
// round(vocabulary*0.3 + grammar*0.3 + pronunciation*0.4).
func normalize(r Result) Result {
	r.VocabularyScore = clampScore(r.VocabularyScore)
	r.GrammarScore = clampScore(r.GrammarScore)
	r.PronunciationScore = clampScore(r.PronunciationScore)

	expected := int(math.Round(float64(r.VocabularyScore)*0.3 +
		float64(r.GrammarScore)*0.3 +
		float64(r.PronunciationScore)*0.4))
	if r.OverallScore == 0 || r.OverallScore != expected {
		r.OverallScore = expected
	}

	switch r.FluencyRating {
	case FluencyBeginner, FluencyIntermediate, FluencyAdvanced, FluencyNative:
	default:
		r.FluencyRating = FluencyIntermediate
	}
	return r
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// extractJSON strips markdown code fences the model sometimes wraps around
// its JSON output.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
