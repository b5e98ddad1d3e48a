package ai

import (
	"context"
)

// Classifier maps free text to an intent label from the fixed vocabulary.
// This interface allows for swapping different backends (Gemini, Watson, etc.)
// without touching the conversation engine.
type Classifier interface {
	// Classify returns the best-matching intent for the message, or
	// IntentNone when nothing from the vocabulary applies.
	Classify(ctx context.Context, text string) (Intent, error)
}
