package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsim/shopsim/sim/llm"
	"github.com/shopsim/shopsim/sim/observer"
	"github.com/shopsim/shopsim/sim/trace"
	"github.com/shopsim/shopsim/sim/transcript"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func templateSession(t *testing.T, cfg Config) *session {
	t.Helper()
	sess, err := newSession(t.Context(), cfg, false)
	require.NoError(t, err)
	return sess
}

func TestNewSession_WithoutLLM_UsesTemplatesAndNoWorker(t *testing.T) {
	sess := templateSession(t, DefaultConfig())
	defer sess.Close()

	_, isTemplates := sess.Capability.(*llm.Templates)
	assert.True(t, isTemplates)
	assert.Nil(t, sess.Worker)
	assert.Nil(t, sess.Transcript)
	assert.Nil(t, sess.Zstd)
	assert.Len(t, sess.Sim.Actors(), len(DefaultConfig().Cast))
	assert.Equal(t, "Bob", sess.Sim.Owner().Name)
}

func TestNewSession_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cast = cfg.Cast[1:] // no owner left

	_, err := newSession(t.Context(), cfg, false)

	assert.Error(t, err)
}

func TestRunTicks_RecordsToBothSinks(t *testing.T) {
	// GIVEN a template-only session exporting to zstd and SQLite
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Trace.Dir = filepath.Join(dir, "traces")
	cfg.Trace.TranscriptDB = filepath.Join(dir, "transcript.db")
	sess := templateSession(t, cfg)

	// WHEN it runs long enough for chats, serves and checkouts
	runTicks(t.Context(), sess, 600, 0, false)
	out := captureStdout(t, func() { sess.report(t.Context()) })
	zstdPath := sess.Zstd.Path()
	require.NoError(t, sess.Close())

	// THEN the metrics and summary are printed
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "=== Trace Summary ===")
	assert.Equal(t, int64(600), sess.Sim.Clock)

	// AND the zstd export replays to the same number of lines as the in-memory trace
	require.NotEmpty(t, zstdPath)
	replayed, err := loadTrace(zstdPath)
	require.NoError(t, err)
	assert.Len(t, replayed.Conversations, len(sess.Trace.Conversations))
	assert.NotEmpty(t, replayed.Conversations)

	// AND the transcript holds every line, all from templates
	store, err := transcript.OpenStore(cfg.Trace.TranscriptDB)
	require.NoError(t, err)
	defer store.Close()
	counts, err := store.CountBySource(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{trace.SourceTemplate: len(sess.Trace.Conversations)}, counts)
}

func TestReport_FlushesTranscriptAfterCancel(t *testing.T) {
	// GIVEN a session recording to SQLite whose run was interrupted
	cfg := DefaultConfig()
	cfg.Trace.TranscriptDB = filepath.Join(t.TempDir(), "transcript.db")
	sess := templateSession(t, cfg)
	defer sess.Close()
	ctx, cancel := context.WithCancel(t.Context())
	runTicks(ctx, sess, 300, 0, false)
	cancel()
	require.NotEmpty(t, sess.Trace.Conversations)

	// WHEN reporting with the cancelled context
	captureStdout(t, func() { sess.report(ctx) })

	// THEN every line is already committed before the store is closed
	reader, err := transcript.OpenStore(cfg.Trace.TranscriptDB)
	require.NoError(t, err)
	defer reader.Close()
	counts, err := reader.CountBySource(t.Context())
	require.NoError(t, err)
	assert.Equal(t, len(sess.Trace.Conversations), counts[trace.SourceTemplate])
}

func TestRunTicks_StopsWhenContextDone(t *testing.T) {
	sess := templateSession(t, DefaultConfig())
	defer sess.Close()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	runTicks(ctx, sess, 100, 0, false)

	assert.Zero(t, sess.Sim.Clock)
}

func TestPrintTranscript_ShowsLinesAndTallies(t *testing.T) {
	store, err := transcript.OpenStore(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.WriteConversation(trace.ConversationRecord{
		Tick: 3, Kind: trace.KindChat, Speaker: "Alice", Listener: "Ben",
		Situation: "by snack shelves", Topic: "snack cravings", Source: trace.SourceTemplate, Line: "Chips again.",
	}))
	require.NoError(t, store.WriteLifecycle(trace.LifecycleRecord{Tick: 9, Actor: "Alice", Event: trace.EventCheckout, ReturnTick: 99}))
	require.NoError(t, store.Flush(t.Context()))

	var perr error
	out := captureStdout(t, func() { perr = printTranscript(t.Context(), store, "", 10) })

	require.NoError(t, perr)
	assert.Contains(t, out, "[00003] Alice->Ben (snack cravings, template): Chips again.")
	assert.Contains(t, out, "=== Checkouts by Customer ===")
	assert.Regexp(t, `Alice\s+: 1`, out)
}

func TestPrintCounts_SortsByCountThenName(t *testing.T) {
	out := captureStdout(t, func() { printCounts(map[string]int{"b": 1, "a": 1, "c": 5}) })

	ic, ia, ib := strings.Index(out, "  c "), strings.Index(out, "  a "), strings.Index(out, "  b ")
	assert.True(t, ic >= 0 && ic < ia && ia < ib, "got order:\n%s", out)
}

func TestPublishLoop_PublishesOneFramePerTick(t *testing.T) {
	sess := templateSession(t, DefaultConfig())
	defer sess.Close()
	hub := observer.NewHub()

	publishLoop(t.Context(), sess, hub, observer.NewCapturer(false), nil, 5, time.Millisecond, false)

	assert.Equal(t, int64(5), sess.Sim.Clock)
	var f observer.Frame
	require.NoError(t, json.Unmarshal(hub.Latest(), &f))
	assert.Equal(t, int64(5), f.Tick)
}
