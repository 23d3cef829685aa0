package trace

import "github.com/sirupsen/logrus"

// TraceLevel controls the verbosity of tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelConversations captures spoken lines only.
	TraceLevelConversations TraceLevel = "conversations"
	// TraceLevelAll captures spoken lines and store entries/exits.
	TraceLevelAll TraceLevel = "all"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:          true,
	TraceLevelConversations: true,
	TraceLevelAll:           true,
	"":                      true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level      TraceLevel
	MaxRecords int // in-memory cap per record type; 0 keeps everything
}

// Sink receives every record the trace accepts, e.g. a compressed JSONL file
// or a SQLite transcript.
type Sink interface {
	WriteConversation(ConversationRecord) error
	WriteLifecycle(LifecycleRecord) error
	Close() error
}

// SimulationTrace collects records during a simulation and forwards them to sinks.
// A nil *SimulationTrace is safe to use; all methods are no-ops.
type SimulationTrace struct {
	Config        TraceConfig
	Conversations []ConversationRecord
	Lifecycle     []LifecycleRecord
	sinks         []Sink
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:        config,
		Conversations: make([]ConversationRecord, 0),
		Lifecycle:     make([]LifecycleRecord, 0),
	}
}

// AddSink attaches a sink. Sinks are closed by Close in attach order.
func (st *SimulationTrace) AddSink(s Sink) {
	if st == nil || s == nil {
		return
	}
	st.sinks = append(st.sinks, s)
}

// RecordConversation appends a conversation record.
func (st *SimulationTrace) RecordConversation(record ConversationRecord) {
	if st == nil || !st.enabled(TraceLevelConversations) {
		return
	}
	st.Conversations = appendCapped(st.Conversations, record, st.Config.MaxRecords)
	for _, s := range st.sinks {
		if err := s.WriteConversation(record); err != nil {
			logrus.Warnf("trace sink: writing conversation at tick %d: %v", record.Tick, err)
		}
	}
}

// RecordLifecycle appends a lifecycle record.
func (st *SimulationTrace) RecordLifecycle(record LifecycleRecord) {
	if st == nil || !st.enabled(TraceLevelAll) {
		return
	}
	st.Lifecycle = appendCapped(st.Lifecycle, record, st.Config.MaxRecords)
	for _, s := range st.sinks {
		if err := s.WriteLifecycle(record); err != nil {
			logrus.Warnf("trace sink: writing lifecycle at tick %d: %v", record.Tick, err)
		}
	}
}

// Close closes every sink and returns the first error.
func (st *SimulationTrace) Close() error {
	if st == nil {
		return nil
	}
	var first error
	for _, s := range st.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	st.sinks = nil
	return first
}

func (st *SimulationTrace) enabled(need TraceLevel) bool {
	switch st.Config.Level {
	case TraceLevelAll:
		return true
	case TraceLevelConversations:
		return need == TraceLevelConversations
	default:
		return false
	}
}

func appendCapped[T any](records []T, r T, maxRecords int) []T {
	records = append(records, r)
	if maxRecords > 0 && len(records) > maxRecords {
		records = append(records[:0:0], records[len(records)-maxRecords:]...)
	}
	return records
}
