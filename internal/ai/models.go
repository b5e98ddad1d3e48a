// README: Intent vocabulary and classifier result types.
package ai

// Intent is the coarse classification of a free-text message.
type Intent string

const (
	// IntentNone means no intent of the vocabulary matched; the message is
	// treated as free-form input for whatever stage the dialogue is in.
	IntentNone Intent = ""

	IntentGreeting      Intent = "say_hello"
	IntentLeaveQuery    Intent = "when_should_i_leave"
	IntentCancelRequest Intent = "cancel_request"
)

// classification is the structured JSON the model is asked to return.
type classification struct {
	// Intent must be one of the vocabulary values above or "none".
	Intent string `json:"intent"`

	// Confidence in [0,1]. Low-confidence matches are discarded.
	Confidence float64 `json:"confidence"`
}
