package sim

// DefaultMemoryCapacity is the per-speaker recall bound.
const DefaultMemoryCapacity = 100

// DefaultRecallLimit is the number of utterances Recall returns when limit <= 0.
const DefaultRecallLimit = 15

// Memory is a listener's bounded recollection of what each speaker told them.
// Not safe for concurrent use; only the tick goroutine writes it.
type Memory struct {
	capacity  int
	bySpeaker map[string][]string
}

// NewMemory creates a Memory holding at most capacity utterances per speaker.
// A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity:  capacity,
		bySpeaker: make(map[string][]string),
	}
}

// Remember appends an utterance from speaker, evicting the oldest beyond capacity.
func (m *Memory) Remember(speaker, utterance string) {
	lines := append(m.bySpeaker[speaker], utterance)
	if over := len(lines) - m.capacity; over > 0 {
		lines = append([]string(nil), lines[over:]...)
	}
	m.bySpeaker[speaker] = lines
}

// Recall returns up to limit of the most recent utterances from speaker, oldest first.
func (m *Memory) Recall(speaker string, limit int) []string {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	lines := m.bySpeaker[speaker]
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return append([]string(nil), lines...)
}

// Dump returns the last limitEach utterances for every speaker.
func (m *Memory) Dump(limitEach int) map[string][]string {
	out := make(map[string][]string, len(m.bySpeaker))
	for speaker := range m.bySpeaker {
		out[speaker] = m.Recall(speaker, limitEach)
	}
	return out
}

// Capacity returns the per-speaker bound.
func (m *Memory) Capacity() int {
	return m.capacity
}
