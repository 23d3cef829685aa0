package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopsim/shopsim/sim"
	"github.com/shopsim/shopsim/sim/dialogue"
	"github.com/shopsim/shopsim/sim/llm"
	"github.com/shopsim/shopsim/sim/trace"
	"github.com/shopsim/shopsim/sim/transcript"
	"github.com/shopsim/shopsim/sim/venue"
)

// session is one wired simulation: store, cast, dialogue pipeline and sinks.
type session struct {
	Sim        *sim.Simulator
	Manager    *dialogue.Manager
	Worker     *dialogue.BatchWorker
	Capability llm.Capability
	Trace      *trace.SimulationTrace
	Transcript *transcript.Store // nil unless a transcript path is configured
	Zstd       *trace.ZstdSink   // nil unless a trace directory is configured
}

// newSession builds a session from cfg. With useLLM false the dialogue runs
// on templates only and no worker goroutine is started.
func newSession(ctx context.Context, cfg Config, useLLM bool) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var capability llm.Capability
	if useLLM && !cfg.LLM.Disabled {
		client := llm.NewClient(llm.ConfigFromEnv(cfg.LLM))
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Probe(probeCtx); err != nil {
			logrus.Warnf("LLM endpoint not reachable (%v); lines will fall back to templates until it answers", err)
		} else {
			logrus.Infof("Using LLM model %s", client.Model())
		}
		cancel()
		capability = client
	} else {
		capability = llm.NewTemplates()
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Simulation.Seed))
	var worker *dialogue.BatchWorker
	if capability.Available() {
		worker = dialogue.NewBatchWorker(capability, dialogue.DefaultRequestQueueSize)
	}
	manager, err := dialogue.NewManager(cfg.Dialogue, capability, worker, rng.ForSubsystem(sim.SubsystemDialogue))
	if err != nil {
		return nil, fmt.Errorf("dialogue: %w", err)
	}

	cast := sim.NewCast(cfg.Cast, cfg.Simulation.MemoryCapacity)
	s, err := sim.NewSimulator(cfg.Simulation, venue.DefaultStore(), cast, manager)
	if err != nil {
		return nil, err
	}
	manager.OnEvent = s.AddLog

	st := trace.NewSimulationTrace(trace.TraceConfig{
		Level:      trace.TraceLevel(cfg.Trace.Level),
		MaxRecords: cfg.Trace.MaxRecords,
	})
	sess := &session{Sim: s, Manager: manager, Worker: worker, Capability: capability, Trace: st}
	if cfg.Trace.Dir != "" {
		sess.Zstd = trace.NewZstdSink(cfg.Trace.Dir)
		st.AddSink(sess.Zstd)
	}
	if cfg.Trace.TranscriptDB != "" {
		store, err := transcript.OpenStore(cfg.Trace.TranscriptDB)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		sess.Transcript = store
		st.AddSink(store)
	}
	s.Trace = st

	if worker != nil {
		worker.Start(ctx)
	}
	return sess, nil
}

// Close stops the worker and flushes every sink.
func (s *session) Close() error {
	if s.Worker != nil {
		s.Worker.Stop()
	}
	return s.Trace.Close()
}

const reportFlushTimeout = 5 * time.Second

// report prints end-of-run metrics and, when recorded, the trace summary.
func (s *session) report(ctx context.Context) {
	s.Sim.Metrics.Print()
	if s.Worker != nil {
		ws := s.Worker.Stats()
		fmt.Printf("Batches Filled       : %d\n", ws.Filled)
		fmt.Printf("Batches Failed       : %d\n", ws.Failed)
		fmt.Printf("Batches Dropped      : %d\n", ws.Dropped)
	}
	if len(s.Trace.Conversations) > 0 {
		printSummary(trace.Summarize(s.Trace))
	}
	if s.Zstd != nil {
		fmt.Printf("Trace File           : %s\n", s.Zstd.Path())
	}
	if s.Transcript != nil {
		// ctx may already be cancelled by the signal that ended the run.
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportFlushTimeout)
		defer cancel()
		if err := s.Transcript.Flush(flushCtx); err != nil {
			logrus.Warnf("transcript flush: %v", err)
			return
		}
		st := s.Transcript.Stats()
		if st.DroppedConversations+st.DroppedLifecycle > 0 {
			logrus.Warnf("transcript dropped %d lines and %d visits", st.DroppedConversations, st.DroppedLifecycle)
		}
	}
}
