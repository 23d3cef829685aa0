// Package testutil provides shared test fakes for the shopsim packages.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopsim/shopsim/sim/llm"
)

// ErrScriptExhausted is returned by ScriptedGenerator when no replies remain.
var ErrScriptExhausted = errors.New("scripted generator: no replies left")

// Call records one Generate invocation.
type Call struct {
	System      string
	Messages    []llm.Message
	MaxTokens   int
	Temperature float64
}

// ScriptedGenerator is an llm.Capability that replays canned replies in order.
// An empty reply is returned as an error. Safe for concurrent use.
type ScriptedGenerator struct {
	mu        sync.Mutex
	available bool
	replies   []string
	calls     []Call
	fallback  string

	// Block, when non-nil, is received from before each Generate returns.
	Block chan struct{}
}

// NewScriptedGenerator returns an available generator with the given replies.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	return &ScriptedGenerator{available: true, replies: replies, fallback: "Nice day for it."}
}

// Unavailable returns a generator whose Available is false.
func Unavailable() *ScriptedGenerator {
	g := NewScriptedGenerator()
	g.available = false
	return g
}

// SetAvailable flips availability.
func (g *ScriptedGenerator) SetAvailable(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.available = v
}

// SetFallback replaces the template line.
func (g *ScriptedGenerator) SetFallback(line string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = line
}

// Available implements llm.Capability.
func (g *ScriptedGenerator) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// Generate implements llm.Capability.
func (g *ScriptedGenerator) Generate(ctx context.Context, system string, messages []llm.Message, maxTokens int, temperature float64) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, Call{System: system, Messages: messages, MaxTokens: maxTokens, Temperature: temperature})
	block := g.Block
	var reply string
	var err error
	switch {
	case !g.available:
		err = llm.ErrUnavailable
	case len(g.replies) == 0:
		err = ErrScriptExhausted
	default:
		reply, g.replies = g.replies[0], g.replies[1:]
		if strings.TrimSpace(reply) == "" {
			err = errors.New("scripted empty reply")
		}
	}
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	return reply, err
}

// Fallback implements llm.Capability.
func (g *ScriptedGenerator) Fallback(speaker, listener, situational string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fallback
}

// Calls returns a copy of every Generate invocation so far.
func (g *ScriptedGenerator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// AssertSpokenLine fails t unless line is non-empty and ends in terminal punctuation.
func AssertSpokenLine(t *testing.T, line string) {
	t.Helper()
	if line == "" {
		t.Errorf("spoken line is empty")
		return
	}
	switch line[len(line)-1] {
	case '.', '?', '!':
	default:
		t.Errorf("spoken line %q does not end in . ? or !", line)
	}
}

var _ llm.Capability = (*ScriptedGenerator)(nil)
