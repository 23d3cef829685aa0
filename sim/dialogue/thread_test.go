package dialogue

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestThreads(drift float64) *Threads {
	return NewThreads(rand.New(rand.NewSource(1)), 80, 8, drift)
}

func TestThreads_EnsureCreatesAndResumes(t *testing.T) {
	ts := newTestThreads(0)
	pair := NewPairKey("Alice", "Ben")

	first := ts.Ensure(pair, "snack brands", 10)
	ts.Append(first, "Alice", "Love these.")
	again := ts.Ensure(pair, "coffee aroma", 50)

	assert.Same(t, first, again, "a fresh thread is resumed")
	assert.Equal(t, "snack brands", again.Topic, "no drift at probability 0")
	assert.Equal(t, int64(50), again.LastTick)
	assert.Equal(t, []string{"Alice: Love these."}, again.History)
}

func TestThreads_StaleThreadIsReplaced(t *testing.T) {
	// GIVEN a thread last active at tick 10
	ts := newTestThreads(0)
	pair := NewPairKey("Alice", "Ben")
	old := ts.Ensure(pair, "snack brands", 10)
	ts.Append(old, "Alice", "Love these.")

	// WHEN the pair talks again exactly at the staleness window, then beyond it
	kept := ts.Ensure(pair, "coffee aroma", 90)
	replaced := ts.Ensure(pair, "coffee aroma", 171)

	// THEN the first resumes and the second starts over with an empty history
	assert.Same(t, old, kept)
	assert.NotSame(t, old, replaced)
	assert.Equal(t, "coffee aroma", replaced.Topic)
	assert.Empty(t, replaced.History)
}

func TestThreads_DriftAlwaysAtProbabilityOne(t *testing.T) {
	ts := newTestThreads(1)
	pair := NewPairKey("Alice", "Ben")
	ts.Ensure(pair, "snack brands", 1)

	got := ts.Ensure(pair, "coffee aroma", 2)

	assert.Equal(t, "coffee aroma", got.Topic)
}

func TestThreads_HistoryIsBounded(t *testing.T) {
	ts := newTestThreads(0)
	th := ts.Ensure(NewPairKey("A", "B"), "weather outside", 1)

	for i := 0; i < 12; i++ {
		ts.Append(th, "A", fmt.Sprintf("line %d.", i))
	}

	require.Len(t, th.History, 8)
	assert.Equal(t, "A: line 4.", th.History[0])
	assert.Equal(t, []string{"A: line 10.", "A: line 11."}, th.Recent(2))
	assert.Len(t, th.Recent(20), 8)
}

func TestThreads_DropInvolving(t *testing.T) {
	// GIVEN threads between Alice and two others plus an unrelated pair
	ts := newTestThreads(0)
	ts.Ensure(NewPairKey("Alice", "Ben"), "snack brands", 1)
	ts.Ensure(NewPairKey("Cara", "Alice"), "snack brands", 1)
	ts.Ensure(NewPairKey("Ben", "Cara"), "snack brands", 1)

	// WHEN Alice leaves
	n := ts.DropInvolving("Alice")

	// THEN only her threads are gone
	assert.Equal(t, 2, n)
	assert.Nil(t, ts.Get(NewPairKey("Alice", "Ben")))
	assert.Nil(t, ts.Get(NewPairKey("Alice", "Cara")))
	assert.NotNil(t, ts.Get(NewPairKey("Ben", "Cara")))
	assert.Equal(t, 1, ts.Len())
}
