package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsim/shopsim/sim/internal/testutil"
)

var aliceToBen = DirectedPair{Speaker: "Alice", Listener: "Ben"}

func testRequest(pair DirectedPair) Request {
	return Request{Pair: pair, System: "sys", Prompt: "say things", Count: 3, Temperature: 0.8}
}

func startWorker(t *testing.T, w *BatchWorker) {
	t.Helper()
	w.Start(context.Background())
	t.Cleanup(w.Stop)
}

func TestBatchWorker_UnavailableLeavesBufferEmpty(t *testing.T) {
	// GIVEN a worker over an unavailable capability
	w := NewBatchWorker(testutil.Unavailable(), 4)
	startWorker(t, w)

	// WHEN a request is enqueued and processed
	require.True(t, w.Enqueue(testRequest(aliceToBen)))
	require.Eventually(t, func() bool { return w.Stats().Skipped == 1 }, time.Second, 5*time.Millisecond)

	// THEN the buffer stays at zero and nothing is pending
	assert.Equal(t, 0, w.Size(aliceToBen))
	assert.False(t, w.Pending(aliceToBen))
}

func TestBatchWorker_FillsBufferAtomically(t *testing.T) {
	// GIVEN a capability that answers with five numbered lines
	gen := testutil.NewScriptedGenerator("1. One.\n2. Two!\n3. Three?\n4. Four.\n5. Five.")
	w := NewBatchWorker(gen, 4)
	startWorker(t, w)

	// WHEN asking for three candidates
	require.True(t, w.Enqueue(testRequest(aliceToBen)))
	require.Eventually(t, func() bool { return w.Size(aliceToBen) == 3 }, time.Second, 5*time.Millisecond)

	// THEN the lines are cleaned, capped and popped in order
	for _, want := range []string{"One.", "Two!", "Three?"} {
		got, ok := w.Pop(aliceToBen)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := w.Pop(aliceToBen)
	assert.False(t, ok)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 3*TokensPerCandidate, calls[0].MaxTokens, "default budget scales with the count")
	assert.Equal(t, "say things", calls[0].Messages[0].Content)
}

func TestBatchWorker_FailureLeavesBufferEmpty(t *testing.T) {
	gen := testutil.NewScriptedGenerator("   ")
	w := NewBatchWorker(gen, 4)
	startWorker(t, w)

	require.True(t, w.Enqueue(testRequest(aliceToBen)))
	require.Eventually(t, func() bool { return w.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, w.Size(aliceToBen))
	assert.Equal(t, uint64(0), w.Stats().Filled)
}

func TestBatchWorker_EnqueueDedupesAndNeverBlocks(t *testing.T) {
	// GIVEN a worker that is not running, so nothing drains the queue
	w := NewBatchWorker(testutil.NewScriptedGenerator(), 1)
	benToAlice := DirectedPair{Speaker: "Ben", Listener: "Alice"}

	// WHEN enqueuing the same pair twice and then a second pair
	first := w.Enqueue(testRequest(aliceToBen))
	dup := w.Enqueue(testRequest(aliceToBen))
	full := w.Enqueue(testRequest(benToAlice))

	// THEN the duplicate and the overflow are dropped without blocking
	assert.True(t, first)
	assert.False(t, dup)
	assert.False(t, full)
	assert.True(t, w.Pending(aliceToBen))
	assert.False(t, w.Pending(benToAlice), "an overflowed request is not left pending")
	assert.Equal(t, uint64(2), w.Stats().Dropped)
}

func TestBatchWorker_StopWaitsForInFlightRequest(t *testing.T) {
	// GIVEN a generation call that blocks until released
	gen := testutil.NewScriptedGenerator("Finally done.")
	gen.Block = make(chan struct{})
	w := NewBatchWorker(gen, 4)
	w.Start(context.Background())
	require.True(t, w.Enqueue(testRequest(aliceToBen)))
	require.Eventually(t, func() bool { return len(gen.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	// WHEN stopping while the call is in flight
	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a generation call was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(gen.Block)

	// THEN the call completes, its lines land, and Stop returns
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the call finished")
	}
	assert.Equal(t, 1, w.Size(aliceToBen))
}

func TestBatchWorker_StopSkipsQueuedRequests(t *testing.T) {
	// GIVEN one request blocked in generation and several more queued behind it
	gen := testutil.NewScriptedGenerator("One.", "Two.", "Three.", "Four.", "Five.", "Six.")
	gen.Block = make(chan struct{})
	w := NewBatchWorker(gen, 8)
	w.Start(context.Background())
	require.True(t, w.Enqueue(testRequest(aliceToBen)))
	require.Eventually(t, func() bool { return len(gen.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	for _, name := range []string{"Cara", "Dev", "Eli", "Fay", "Gus"} {
		require.True(t, w.Enqueue(testRequest(DirectedPair{Speaker: name, Listener: "Alice"})))
	}

	// WHEN stopping and then letting the in-flight call finish
	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	time.Sleep(50 * time.Millisecond)
	close(gen.Block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the call finished")
	}

	// THEN no queued request reached the capability after the stop
	assert.Len(t, gen.Calls(), 1)
	assert.Equal(t, 1, w.Size(aliceToBen))
}

func TestBatchWorker_Prime(t *testing.T) {
	w := NewBatchWorker(testutil.NewScriptedGenerator(), 1)
	w.Prime(aliceToBen, "a.", "b.")
	assert.Equal(t, 2, w.Size(aliceToBen))
	got, _ := w.Pop(aliceToBen)
	assert.Equal(t, "a.", got)
	assert.Equal(t, 0, w.Size(DirectedPair{Speaker: "Ben", Listener: "Alice"}), "buffers are directional")
}
