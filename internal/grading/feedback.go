package grading

import (
	"encoding/json"
	"strings"

	"github.com/admitcoach/admitcoach/pkg/recorder"
)

// FeedbackResult is the tagged outcome of decoding model output: either a
// fully-scored Feedback or the raw text when the model did not return the
// requested schema. Callers branch on Scored instead of null-checking score
// fields.
type FeedbackResult struct {
	Scored   bool
	Feedback recorder.Feedback
	RawText  string
}

type feedbackPayload struct {
	Text           string   `json:"text"`
	ContentScore   *int     `json:"contentScore"`
	DeliveryScore  *int     `json:"deliveryScore"`
	StructureScore *int     `json:"structureScore"`
	OverallScore   *int     `json:"overallScore"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Suggestions    []string `json:"suggestions"`
}

// DecodeFeedback strictly decodes model output into a scored Feedback.
// Fenced code blocks around the JSON are tolerated; anything short of a
// complete four-score document comes back as a text-only result.
func DecodeFeedback(raw string) FeedbackResult {
	trimmed := trimCodeFence(raw)
	var payload feedbackPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return FeedbackResult{RawText: raw}
	}
	scores := []*int{payload.ContentScore, payload.DeliveryScore, payload.StructureScore, payload.OverallScore}
	for _, score := range scores {
		if score == nil || *score < 0 || *score > 10 {
			return FeedbackResult{RawText: raw}
		}
	}
	return FeedbackResult{
		Scored: true,
		Feedback: recorder.Feedback{
			Text:           payload.Text,
			ContentScore:   *payload.ContentScore,
			DeliveryScore:  *payload.DeliveryScore,
			StructureScore: *payload.StructureScore,
			OverallScore:   *payload.OverallScore,
			Strengths:      payload.Strengths,
			Weaknesses:     payload.Weaknesses,
			Suggestions:    payload.Suggestions,
		},
	}
}

func trimCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
