package dialogue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/shopsim/shopsim/sim/llm"
)

// Batch defaults.
const (
	DefaultBatchCount       = 6
	TokensPerCandidate      = 28
	DefaultTemperature      = 0.8
	DefaultRequestQueueSize = 64
)

// Request asks for Count candidate lines for one directed pair.
type Request struct {
	Pair        DirectedPair
	System      string
	Prompt      string
	Count       int
	MaxTokens   int
	Temperature float64
}

// WorkerStats counts what happened to requests.
type WorkerStats struct {
	Filled  uint64 // requests that added at least one line
	Failed  uint64 // generation errors or nothing usable
	Skipped uint64 // capability unavailable
	Dropped uint64 // queue full or duplicate
}

// BatchWorker fills per-pair line buffers in the background. One goroutine
// consumes Requests; buffers are guarded by a mutex that is never held across
// a generation call.
type BatchWorker struct {
	gen      llm.Capability
	requests chan Request

	mu      sync.Mutex
	buffers map[DirectedPair][]string
	pending map[DirectedPair]bool

	cancel context.CancelFunc
	done   chan struct{}

	filled, failed, skipped, dropped atomic.Uint64
}

// NewBatchWorker creates a worker; queueSize bounds outstanding requests.
func NewBatchWorker(gen llm.Capability, queueSize int) *BatchWorker {
	if queueSize <= 0 {
		queueSize = DefaultRequestQueueSize
	}
	return &BatchWorker{
		gen:      gen,
		requests: make(chan Request, queueSize),
		buffers:  make(map[DirectedPair][]string),
		pending:  make(map[DirectedPair]bool),
	}
}

// Start launches the worker goroutine. It runs until ctx is done or Stop is called.
func (w *BatchWorker) Start(ctx context.Context) {
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop signals the worker and waits for it. A request already being
// generated is allowed to finish.
func (w *BatchWorker) Stop() {
	if w.done == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *BatchWorker) run(ctx context.Context) {
	defer close(w.done)
	logrus.Debugf("dialogue worker started")
	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("dialogue worker stopped")
			return
		case req := <-w.requests:
			// select picks randomly among ready cases, so a queued request
			// can win over a stop that has already happened.
			if ctx.Err() != nil {
				w.clearPending(req.Pair)
				logrus.Debugf("dialogue worker stopped")
				return
			}
			// Generation is not cancelled by Stop; the capability's own
			// timeout bounds it.
			w.handle(context.WithoutCancel(ctx), req)
		}
	}
}

func (w *BatchWorker) handle(ctx context.Context, req Request) {
	defer w.clearPending(req.Pair)
	if !w.gen.Available() {
		w.skipped.Add(1)
		return
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = req.Count * TokensPerCandidate
	}
	raw, err := w.gen.Generate(ctx, req.System, []llm.Message{{Role: llm.RoleUser, Content: req.Prompt}}, maxTokens, req.Temperature)
	if err != nil {
		w.failed.Add(1)
		logrus.Debugf("dialogue worker: %s: %v", req.Pair, err)
		return
	}
	lines := CleanCandidates(raw, req.Count)
	if len(lines) == 0 {
		w.failed.Add(1)
		return
	}
	w.mu.Lock()
	w.buffers[req.Pair] = append(w.buffers[req.Pair], lines...)
	w.mu.Unlock()
	w.filled.Add(1)
}

func (w *BatchWorker) clearPending(pair DirectedPair) {
	w.mu.Lock()
	delete(w.pending, pair)
	w.mu.Unlock()
}

// Enqueue submits req without blocking. It returns false when a request for
// the same pair is already outstanding or the queue is full.
func (w *BatchWorker) Enqueue(req Request) bool {
	w.mu.Lock()
	if w.pending[req.Pair] {
		w.mu.Unlock()
		w.dropped.Add(1)
		return false
	}
	w.pending[req.Pair] = true
	w.mu.Unlock()

	select {
	case w.requests <- req:
		return true
	default:
		w.clearPending(req.Pair)
		w.dropped.Add(1)
		logrus.Debugf("dialogue worker: queue full, dropping %s", req.Pair)
		return false
	}
}

// Pop removes and returns the oldest buffered line for pair.
func (w *BatchWorker) Pop(pair DirectedPair) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := w.buffers[pair]
	if len(buf) == 0 {
		return "", false
	}
	line := buf[0]
	if len(buf) == 1 {
		delete(w.buffers, pair)
	} else {
		w.buffers[pair] = buf[1:]
	}
	return line, true
}

// Size returns how many lines are buffered for pair.
func (w *BatchWorker) Size(pair DirectedPair) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffers[pair])
}

// Prime appends lines to pair's buffer directly.
func (w *BatchWorker) Prime(pair DirectedPair, lines ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffers[pair] = append(w.buffers[pair], lines...)
}

// Pending reports whether a request for pair is queued or in flight.
func (w *BatchWorker) Pending(pair DirectedPair) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[pair]
}

// Stats returns a snapshot of the request counters.
func (w *BatchWorker) Stats() WorkerStats {
	return WorkerStats{
		Filled:  w.filled.Load(),
		Failed:  w.failed.Load(),
		Skipped: w.skipped.Load(),
		Dropped: w.dropped.Load(),
	}
}

// CleanCandidates splits a batch completion into at most count lines,
// stripping quotes, list numbering ("1.", "2)") and bullets.
func CleanCandidates(raw string, count int) []string {
	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if count > 0 && len(out) >= count {
			break
		}
		l = strings.Trim(l, quoteChars)
		l = stripNumbering(l)
		l = strings.TrimLeft(l, "-*•· ")
		l = strings.Trim(l, quoteChars)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func stripNumbering(l string) string {
	i := strings.IndexFunc(l, func(r rune) bool { return !unicode.IsDigit(r) })
	if i <= 0 || (l[i] != '.' && l[i] != ')') {
		return l
	}
	return strings.TrimSpace(l[i+1:])
}
