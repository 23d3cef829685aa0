package dialogue

import "math/rand"

// Thread is the running conversation between two actors.
type Thread struct {
	Topic    string
	History  []string // "speaker: line", oldest first
	LastTick int64
}

// Recent returns up to n of the newest history lines.
func (t *Thread) Recent(n int) []string {
	if n > len(t.History) {
		n = len(t.History)
	}
	return t.History[len(t.History)-n:]
}

// Threads holds one Thread per pair. Threads idle for longer than
// staleAfter ticks are replaced rather than resumed.
type Threads struct {
	rng          *rand.Rand
	staleAfter   int64
	historyLimit int
	drift        float64
	byPair       map[PairKey]*Thread
}

// NewThreads creates an empty thread table.
func NewThreads(rng *rand.Rand, staleAfter int64, historyLimit int, drift float64) *Threads {
	return &Threads{
		rng:          rng,
		staleAfter:   staleAfter,
		historyLimit: historyLimit,
		drift:        drift,
		byPair:       make(map[PairKey]*Thread),
	}
}

// SetLimits changes staleness, history and drift for subsequent calls.
// Existing histories are trimmed on their next Append.
func (ts *Threads) SetLimits(staleAfter int64, historyLimit int, drift float64) {
	ts.staleAfter = staleAfter
	ts.historyLimit = historyLimit
	ts.drift = drift
}

// Ensure returns the live thread for pair, starting a fresh one on topic when
// none exists or the old one went stale. A resumed thread drifts to topic
// with the configured probability. LastTick is always refreshed.
func (ts *Threads) Ensure(pair PairKey, topic string, tick int64) *Thread {
	t, ok := ts.byPair[pair]
	if !ok || tick-t.LastTick > ts.staleAfter {
		t = &Thread{Topic: topic, LastTick: tick}
		ts.byPair[pair] = t
		return t
	}
	if ts.rng.Float64() < ts.drift {
		t.Topic = topic
	}
	t.LastTick = tick
	return t
}

// Append records a rendered line, evicting the oldest beyond the history limit.
func (ts *Threads) Append(t *Thread, speaker, line string) {
	t.History = append(t.History, speaker+": "+line)
	if over := len(t.History) - ts.historyLimit; over > 0 {
		t.History = append([]string(nil), t.History[over:]...)
	}
}

// Get returns the pair's thread, or nil.
func (ts *Threads) Get(pair PairKey) *Thread {
	return ts.byPair[pair]
}

// DropInvolving deletes every thread that includes name and returns how many went.
func (ts *Threads) DropInvolving(name string) int {
	n := 0
	for k := range ts.byPair {
		if k.Contains(name) {
			delete(ts.byPair, k)
			n++
		}
	}
	return n
}

// Len returns the number of live threads.
func (ts *Threads) Len() int {
	return len(ts.byPair)
}
