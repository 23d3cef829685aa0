package sim

// Utterance is one line produced for a speaker/listener pair.
type Utterance struct {
	Line   string
	Topic  string
	Source string // trace.SourceBuffer, trace.SourceDirect or trace.SourceTemplate
}

// Dialogue produces conversation lines for the tick engine.
// Implementations live in sim/dialogue/ and must never panic or block for
// longer than one generation call.
type Dialogue interface {
	// Converse returns one sanitized line spoken by speaker to listener.
	Converse(speaker, listener *Actor, situational string, tick int64, activeNames []string) Utterance
	// DropThreadsInvolving forgets every conversation thread that includes name.
	DropThreadsInvolving(name string)
}
