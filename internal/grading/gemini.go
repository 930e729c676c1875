// Package grading proxies the speech/feedback AI collaborator: audio plus
// question text in, transcript-grounded scored feedback out.
package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultModelName  = "gemini-1.5-flash"
	rateSlotTimeout   = 5 * time.Minute
	promptTemperature = 0.2
)

var (
	ErrUpstreamUnavailable = errors.New("grading upstream unavailable")
	ErrInvalidGraderConfig = errors.New("invalid grader config")
)

// Grader scores one spoken answer against its question.
type Grader interface {
	Grade(ctx context.Context, audio []byte, mimeType string, question string) (FeedbackResult, error)
}

// GeminiGrader implements Grader over the Gemini API with a bounded number
// of concurrent upstream calls.
type GeminiGrader struct {
	client *genai.Client
	model  *genai.GenerativeModel
	slots  chan struct{}
}

// NewGeminiGrader dials the Gemini API.
func NewGeminiGrader(ctx context.Context, apiKey string, concurrentRequests int) (*GeminiGrader, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: empty api key", ErrInvalidGraderConfig)
	}
	if concurrentRequests <= 0 {
		concurrentRequests = 1
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	model := client.GenerativeModel(defaultModelName)
	model.SetTemperature(promptTemperature)

	slots := make(chan struct{}, concurrentRequests)
	for i := 0; i < concurrentRequests; i++ {
		slots <- struct{}{}
	}
	return &GeminiGrader{client: client, model: model, slots: slots}, nil
}

// Close releases the underlying client.
func (grader *GeminiGrader) Close() {
	_ = grader.client.Close()
}

// Grade transcribes and scores one answer. The model is asked for the four
// 0-10 sub-scores as JSON; output that does not match the schema comes back
// as a text-only result rather than an error.
func (grader *GeminiGrader) Grade(ctx context.Context, audio []byte, mimeType string, question string) (FeedbackResult, error) {
	if err := grader.acquireSlot(ctx); err != nil {
		return FeedbackResult{}, err
	}
	defer grader.releaseSlot()

	response, err := grader.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(gradingPrompt(question)),
	)
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return DecodeFeedback(collectText(response)), nil
}

func (grader *GeminiGrader) acquireSlot(ctx context.Context) error {
	select {
	case <-grader.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rateSlotTimeout):
		return fmt.Errorf("%w: timeout waiting for grading slot", ErrUpstreamUnavailable)
	}
}

func (grader *GeminiGrader) releaseSlot() {
	grader.slots <- struct{}{}
}

func gradingPrompt(question string) string {
	return fmt.Sprintf(`You are an expert admissions interview coach. Listen to the recorded answer and grade it against the question in four categories (0-10 each): Content, Delivery, Structure, and Overall. Provide a brief, actionable comment. Respond with JSON only, in this exact shape:

{
  "text": "Your answer was clear and relevant. Try to elaborate more on your personal motivation.",
  "contentScore": 8,
  "deliveryScore": 7,
  "structureScore": 9,
  "overallScore": 8,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."]
}

Question: %s`, question)
}

func collectText(response *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return builder.String()
}
