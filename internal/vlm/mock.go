package vlm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedProvider replays a fixed sequence of replies. It backs dry runs
// and tests; after the script is exhausted every call returns an error.
type ScriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

// NewScriptedProvider builds a provider from an ordered reply list.
func NewScriptedProvider(replies ...string) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

// NextAction returns the next scripted reply.
func (p *ScriptedProvider) NextAction(ctx context.Context, goal string, obs Observation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.replies) {
		return "", fmt.Errorf("scripted provider exhausted after %d replies", len(p.replies))
	}
	reply := p.replies[p.calls]
	p.calls++
	return reply, nil
}

// Calls reports how many replies have been consumed.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
