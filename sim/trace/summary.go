package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalLines        int
	ServeLines        int
	BySource          map[string]int // buffer/direct/template → lines
	BySpeaker         map[string]int
	TopicDistribution map[string]int
	Entries           int
	Checkouts         int
	UniqueConversants int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		BySource:          make(map[string]int),
		BySpeaker:         make(map[string]int),
		TopicDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	people := make(map[string]bool)
	summary.TotalLines = len(st.Conversations)
	for _, c := range st.Conversations {
		if c.Kind == KindServe {
			summary.ServeLines++
		}
		summary.BySource[c.Source]++
		summary.BySpeaker[c.Speaker]++
		if c.Topic != "" {
			summary.TopicDistribution[c.Topic]++
		}
		people[c.Speaker] = true
		people[c.Listener] = true
	}
	summary.UniqueConversants = len(people)

	for _, l := range st.Lifecycle {
		switch l.Event {
		case EventEnter:
			summary.Entries++
		case EventCheckout:
			summary.Checkouts++
		}
	}
	return summary
}
