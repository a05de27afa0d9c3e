// Package vlm talks to the vision model that decides what to do with the
// screen. The transport is an OpenAI-compatible chat completions endpoint;
// screenshots travel as base64 image parts.
package vlm

import (
	"context"
)

// Observation is one screen snapshot plus loop context for the model.
type Observation struct {
	Screenshot []byte // PNG bytes, may be nil when capture failed
	StepIndex  int
	// Feedback tells the model what happened to its previous command:
	// empty on the first step, otherwise a short outcome line.
	Feedback string
}

// Provider produces the next raw reply for a goal and observation. The
// reply is untrusted free text; callers must parse and validate it before
// anything acts on it.
type Provider interface {
	NextAction(ctx context.Context, goal string, obs Observation) (string, error)
}
