package dialogue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shopsim/shopsim/sim"
	"github.com/shopsim/shopsim/sim/llm"
	"github.com/shopsim/shopsim/sim/trace"
)

// SystemPrompt frames a single spoken line.
const SystemPrompt = `You are generating a SINGLE short in-character line of dialogue for a simulation in a convenience store.
Rules:
- ONE concise utterance (no narration, no quotes, no stage directions)
- Under 18 words.
- Natural casual tone.
- Avoid trailing conjunctions like 'and', 'but'.
- Finish the thought with punctuation.`

// BatchSystemPrompt frames a batch of alternative lines.
const BatchSystemPrompt = `You are generating alternative short in-character lines of dialogue for a simulation in a convenience store.
Rules:
- One utterance per line, no numbering, no quotes, no narration.
- Each under 18 words, natural casual tone, finished with punctuation.`

// Config tunes a Manager.
type Config struct {
	BatchCount       int     `yaml:"batch_count"`       // candidates per batch request
	RefillBelow      int     `yaml:"refill_below"`      // enqueue a batch when the buffer holds fewer lines
	Temperature      float64 `yaml:"temperature"`       // for batch and direct calls
	DirectMaxTokens  int     `yaml:"direct_max_tokens"` // token budget of the synchronous fallback
	ThreadStaleAfter int64   `yaml:"thread_stale_after"`
	ThreadHistory    int     `yaml:"thread_history"`
	TopicDrift       float64 `yaml:"topic_drift"`
	MemoryRecall     int     `yaml:"memory_recall"` // remembered lines per direction in prompts
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		BatchCount:       DefaultBatchCount,
		RefillBelow:      2,
		Temperature:      DefaultTemperature,
		DirectMaxTokens:  60,
		ThreadStaleAfter: 80,
		ThreadHistory:    8,
		TopicDrift:       0.15,
		MemoryRecall:     2,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.BatchCount <= 0:
		return errors.New("batch_count must be positive")
	case c.RefillBelow < 0:
		return errors.New("refill_below must not be negative")
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature)
	case c.DirectMaxTokens <= 0:
		return errors.New("direct_max_tokens must be positive")
	case c.ThreadStaleAfter <= 0:
		return errors.New("thread_stale_after must be positive")
	case c.ThreadHistory <= 0:
		return errors.New("thread_history must be positive")
	case c.TopicDrift < 0 || c.TopicDrift > 1:
		return fmt.Errorf("topic_drift must be in [0, 1], got %g", c.TopicDrift)
	case c.MemoryRecall < 0:
		return errors.New("memory_recall must not be negative")
	}
	return nil
}

// Manager produces conversation lines. It implements sim.Dialogue and is
// not safe for concurrent use; only its BatchWorker runs in the background.
type Manager struct {
	cfg     Config
	gen     llm.Capability
	worker  *BatchWorker
	topics  *TopicPolicy
	threads *Threads

	// OnEvent, when set, receives generation failures worth showing in the event log.
	OnEvent func(msg string)
}

// NewManager creates a manager. worker may be nil, in which case every
// line comes from a direct call or a template.
func NewManager(cfg Config, gen llm.Capability, worker *BatchWorker, rng *rand.Rand) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dialogue config: %w", err)
	}
	if gen == nil {
		return nil, errors.New("dialogue manager needs a generation capability")
	}
	return &Manager{
		cfg:     cfg,
		gen:     gen,
		worker:  worker,
		topics:  NewTopicPolicy(rng),
		threads: NewThreads(rng, cfg.ThreadStaleAfter, cfg.ThreadHistory, cfg.TopicDrift),
	}, nil
}

// Tune replaces the manager's configuration between lines. It must be
// called from the goroutine that calls Converse.
func (m *Manager) Tune(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid dialogue config: %w", err)
	}
	m.cfg = cfg
	m.threads.SetLimits(cfg.ThreadStaleAfter, cfg.ThreadHistory, cfg.TopicDrift)
	return nil
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// GenerateLine returns one sanitized line from speaker to listener.
func (m *Manager) GenerateLine(speaker, listener *sim.Actor, situational string, tick int64, activeNames []string) string {
	return m.Converse(speaker, listener, situational, tick, activeNames).Line
}

// Converse picks the pair's topic, refreshes its thread, then takes a line
// from the buffer, a direct call or a template, in that order. The result is
// remembered by the listener and appended to the thread.
func (m *Manager) Converse(speaker, listener *sim.Actor, situational string, tick int64, activeNames []string) sim.Utterance {
	pair := NewPairKey(speaker.Name, listener.Name)
	directed := DirectedPair{Speaker: speaker.Name, Listener: listener.Name}

	topic := m.topics.Choose(pair, situational)
	thread := m.threads.Ensure(pair, topic, tick)
	prompt := m.prompt(speaker, listener, situational, thread, activeNames)

	if m.worker != nil && m.gen.Available() && m.worker.Size(directed) < m.cfg.RefillBelow {
		m.worker.Enqueue(Request{
			Pair:        directed,
			System:      BatchSystemPrompt,
			Prompt:      m.batchPrompt(prompt, speaker.Name),
			Count:       m.cfg.BatchCount,
			MaxTokens:   m.cfg.BatchCount * TokensPerCandidate,
			Temperature: m.cfg.Temperature,
		})
	}

	var line, source string
	if m.worker != nil {
		if raw, ok := m.worker.Pop(directed); ok {
			line, source = Sanitize(raw), trace.SourceBuffer
		}
	}
	if line == "" && m.gen.Available() {
		line, source = m.direct(directed, prompt), trace.SourceDirect
	}
	if line == "" {
		line, source = Sanitize(m.gen.Fallback(speaker.Name, listener.Name, situational)), trace.SourceTemplate
	}
	if line == "" {
		line = "Hm."
	}
	line = GuardRegister(line, situational)

	if listener.Memory != nil {
		listener.Memory.Remember(speaker.Name, line)
	}
	m.threads.Append(thread, speaker.Name, line)
	return sim.Utterance{Line: line, Topic: thread.Topic, Source: source}
}

func (m *Manager) direct(pair DirectedPair, prompt string) string {
	raw, err := m.gen.Generate(context.Background(), SystemPrompt,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}}, m.cfg.DirectMaxTokens, m.cfg.Temperature)
	if err != nil {
		logrus.Debugf("dialogue: direct generation for %s failed: %v", pair, err)
		m.event(fmt.Sprintf("generation failed for %s: %v", pair, err))
		return ""
	}
	return Sanitize(raw)
}

func (m *Manager) event(msg string) {
	if m.OnEvent != nil {
		m.OnEvent(msg)
	}
}

// DropThreadsInvolving forgets every thread that includes name.
func (m *Manager) DropThreadsInvolving(name string) {
	if n := m.threads.DropInvolving(name); n > 0 {
		logrus.Debugf("dialogue: dropped %d thread(s) with %s", n, name)
	}
}

// Thread returns the live thread between a and b, or nil.
func (m *Manager) Thread(a, b string) *Thread {
	return m.threads.Get(NewPairKey(a, b))
}

// TopicStats returns the most used topics.
func (m *Manager) TopicStats(limit int) []TopicCount {
	return m.topics.Stats(limit)
}

// Worker returns the batch worker, or nil.
func (m *Manager) Worker() *BatchWorker {
	return m.worker
}

func (m *Manager) prompt(speaker, listener *sim.Actor, situational string, thread *Thread, activeNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Characters:\n- %s: %s\n- %s: %s\n\n", speaker.Name, speaker.Personality, listener.Name, listener.Personality)
	fmt.Fprintf(&b, "Situation: %s\nContext:\n%s\n\n", situational, m.contextLines(speaker, listener, thread, activeNames))
	fmt.Fprintf(&b, "Ongoing conversation thread topic: %s\n", thread.Topic)
	b.WriteString("If replying, you can reference earlier thread lines naturally; avoid repeating same noun phrases exactly.\n\n")
	fmt.Fprintf(&b, "Produce only what %s says now:", speaker.Name)
	return b.String()
}

func (m *Manager) batchPrompt(prompt, speaker string) string {
	return strings.TrimSuffix(prompt, fmt.Sprintf("Produce only what %s says now:", speaker)) +
		fmt.Sprintf("Produce %d different things %s might say next, one per line:", m.cfg.BatchCount, speaker)
}

func (m *Manager) contextLines(speaker, listener *sim.Actor, thread *Thread, activeNames []string) string {
	var lines []string
	if len(thread.History) > 0 {
		lines = append(lines, "Thread recent lines: "+strings.Join(thread.Recent(4), " | "))
		lines = append(lines, "Thread topic: "+thread.Topic)
	}
	if listener.Memory != nil {
		if heard := listener.Memory.Recall(speaker.Name, m.cfg.MemoryRecall); len(heard) > 0 {
			lines = append(lines, fmt.Sprintf("Recent %s-> %s: %s", speaker.Name, listener.Name, strings.Join(heard, " | ")))
		}
	}
	if speaker.Memory != nil {
		if heard := speaker.Memory.Recall(listener.Name, m.cfg.MemoryRecall); len(heard) > 0 {
			lines = append(lines, fmt.Sprintf("Recent %s-> %s: %s", listener.Name, speaker.Name, strings.Join(heard, " | ")))
		}
	}
	present := []string{speaker.Name, listener.Name}
	for _, n := range activeNames {
		if !slices.Contains(present, n) {
			present = append(present, n)
		}
	}
	slices.Sort(present)
	lines = append(lines, "Present characters: "+strings.Join(present, ", "))
	return strings.Join(lines, "\n")
}

var _ sim.Dialogue = (*Manager)(nil)
