package trace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdSink_WritesReadableEnvelopes(t *testing.T) {
	// GIVEN a sink in a temp dir
	dir := t.TempDir()
	sink := NewZstdSink(dir)

	// WHEN a conversation and a lifecycle record are written and the sink is closed
	require.NoError(t, sink.WriteConversation(ConversationRecord{Tick: 14, Speaker: "Cara", Listener: "Drew", Line: "Nice day, right?"}))
	require.NoError(t, sink.WriteLifecycle(LifecycleRecord{Tick: 15, Actor: "Drew", Event: EventCheckout, ReturnTick: 120}))
	path := sink.Path()
	require.NoError(t, sink.Close())

	// THEN the file decodes back in order
	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))
	envs, err := ReadEnvelopes(path)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "conversation", envs[0].Type)
	assert.Equal(t, "Nice day, right?", envs[0].Conversation.Line)
	assert.Equal(t, "lifecycle", envs[1].Type)
	assert.Equal(t, int64(120), envs[1].Lifecycle.ReturnTick)
}

func TestZstdSink_LinesReadableBeforeClose(t *testing.T) {
	// GIVEN a sink that has written two records and is still open
	sink := NewZstdSink(t.TempDir())
	defer sink.Close()
	require.NoError(t, sink.WriteConversation(ConversationRecord{Tick: 7, Speaker: "Cara", Listener: "Drew", Line: "Busy today."}))
	require.NoError(t, sink.WriteLifecycle(LifecycleRecord{Tick: 8, Actor: "Drew", Event: EventCheckout, ReturnTick: 90}))

	// WHEN the file is read while the writer is live
	envs, err := ReadEnvelopes(sink.Path())

	// THEN both lines are already on disk
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "Busy today.", envs[0].Conversation.Line)
	assert.Equal(t, int64(90), envs[1].Lifecycle.ReturnTick)
}

func TestJSONLZstdWriter_RotatesOnTheHour(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "trace")
	now := time.Date(2025, 3, 1, 10, 59, 0, 0, time.UTC)
	w.nowFunc = func() time.Time { return now }

	require.NoError(t, w.Write(map[string]int{"tick": 1}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Write(map[string]int{"tick": 2}))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadEnvelopes_MissingFile(t *testing.T) {
	_, err := ReadEnvelopes(filepath.Join(t.TempDir(), "nope.jsonl.zst"))
	assert.Error(t, err)
}
