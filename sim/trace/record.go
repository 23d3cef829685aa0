// Package trace records what happened during a store simulation: every line
// spoken and every customer entering or leaving. This package has no
// dependencies on sim/; it stores pure data types and writes them to sinks.
package trace

// Line sources, in the order the dialogue pipeline tries them.
const (
	SourceBuffer   = "buffer"   // pre-generated by the batch worker
	SourceDirect   = "direct"   // synchronous generation call
	SourceTemplate = "template" // deterministic fallback
)

// Conversation kinds.
const (
	KindChat  = "chat"  // two adjacent actors talking
	KindServe = "serve" // the owner serving the front of the checkout line
)

// Lifecycle events.
const (
	EventEnter    = "enter"
	EventCheckout = "checkout"
)

// ConversationRecord captures a single spoken line.
type ConversationRecord struct {
	Tick      int64  `json:"tick"`
	Kind      string `json:"kind"`
	Speaker   string `json:"speaker"`
	Listener  string `json:"listener"`
	Situation string `json:"situation"`
	Topic     string `json:"topic"`
	Source    string `json:"source"`
	Line      string `json:"line"`
}

// LifecycleRecord captures a customer entering the store or leaving after checkout.
type LifecycleRecord struct {
	Tick       int64  `json:"tick"`
	Actor      string `json:"actor"`
	Event      string `json:"event"`
	ReturnTick int64  `json:"return_tick,omitempty"` // set on checkout
}
