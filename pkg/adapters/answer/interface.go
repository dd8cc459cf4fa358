package answer

import "context"

// Answerer produces the agent's reply to one transcribed utterance.
type Answerer interface {
	Name() string
	Invoke(ctx context.Context, text string) (string, error)
}
