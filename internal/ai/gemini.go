package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// minConfidence is the threshold below which a classification is
// treated as IntentNone rather than trusted.
const minConfidence = 0.5

// GeminiClassifier implements Classifier using Google's Gemini models.
type GeminiClassifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClassifier initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiClassifier(ctx context.Context, apiKey string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Flash keeps per-message classification latency low.
	model := client.GenerativeModel("gemini-2.0-flash")

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"

	// Classification should be deterministic, not creative.
	model.SetTemperature(0.0)

	return &GeminiClassifier{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (c *GeminiClassifier) Close() {
	c.client.Close()
}

// Classify asks the model which intent of the fixed vocabulary the
// message carries.
func (c *GeminiClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	fullPrompt := fmt.Sprintf("%s\n\nUser Message: %s", systemPrompt, text)

	resp, err := c.model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return IntentNone, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return IntentNone, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	// Strip markdown fences in case the model ignores the JSON MIME type.
	cleanJSON := cleanJSONString(responseText.String())

	var result classification
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return IntentNone, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}

	if result.Confidence < minConfidence {
		return IntentNone, nil
	}

	switch Intent(result.Intent) {
	case IntentGreeting, IntentLeaveQuery, IntentCancelRequest:
		return Intent(result.Intent), nil
	default:
		return IntentNone, nil
	}
}

const systemPrompt = `Role: You are the intent classifier for "travel-advisor", a chat bot that tells commuters when to leave so their drive stays under a target duration.

Classify the user message into EXACTLY ONE of these intents:

- "say_hello": greetings and small talk openers ("hi", "hello", "good morning", "hey bot").
- "when_should_i_leave": the user wants to know when to depart, asks about travel or commute timing, or wants the bot to watch traffic for them ("when should I leave", "when do I need to go", "watch my commute").
- "cancel_request": the user wants to abort the current request ("cancel", "stop", "forget it", "nevermind").
- "none": anything else. Place names, street addresses, bare numbers, and answers to questions the bot asked are ALWAYS "none" - they are stage input, not intents.

RULES:
1. Output intent "none" unless the message clearly expresses one of the three intents on its own.
2. Never guess an intent from a location or a number.
3. Confidence reflects how clearly the message matches the intent.

Output JSON Schema:
{
  "intent": "say_hello" | "when_should_i_leave" | "cancel_request" | "none",
  "confidence": number between 0 and 1
}
`

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
