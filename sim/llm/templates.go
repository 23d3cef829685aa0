package llm

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"
)

// ErrUnavailable is returned by Generate when no model is configured.
var ErrUnavailable = errors.New("language model unavailable")

var templates = []func(speaker, listener, situational string) string{
	func(_, l, s string) string { return fmt.Sprintf("%s, have you noticed %s?", l, s) },
	func(_, _, s string) string { return fmt.Sprintf("Thinking about %s lately.", s) },
	func(_, l, s string) string { return fmt.Sprintf("%s, any opinion on %s?", l, s) },
	func(_, _, s string) string { return fmt.Sprintf("I might buy something else related to %s.", s) },
	func(_, _, _ string) string { return "Not sure about these prices today." },
}

// Templates is a Capability that never generates and answers every request
// from a fixed set of templates. It backs --no-llm and is embedded in Client.
type Templates struct {
	calls atomic.Uint64
}

// NewTemplates returns a template-only capability.
func NewTemplates() *Templates {
	return &Templates{}
}

// Available is always false.
func (t *Templates) Available() bool { return false }

// Generate always fails with ErrUnavailable.
func (t *Templates) Generate(context.Context, string, []Message, int, float64) (string, error) {
	return "", ErrUnavailable
}

// Fallback picks a template from the participants and situation, rotated by
// a call counter so the same pair does not hear one line forever.
func (t *Templates) Fallback(speaker, listener, situational string) string {
	if situational == "" {
		situational = "the store"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(speaker + "\x00" + listener + "\x00" + situational))
	idx := (h.Sum64() + t.calls.Add(1)) % uint64(len(templates))
	return templates[idx](speaker, listener, situational)
}

var _ Capability = (*Templates)(nil)
