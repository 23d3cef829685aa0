package sim

import (
	"fmt"
	"sort"
)

// Metrics counts what happened over a run.
type Metrics struct {
	Ticks         int64
	Conversations int            // chat lines between adjacent actors
	Serves        int            // owner lines to the front of the line
	LinesBySource map[string]int // buffer/direct/template
	Entries       int            // respawns through the door
	Checkouts     int            // customers offstaged after paying
	Faults        int            // recovered panics inside Tick
	PeakQueueLen  int
}

// NewMetrics creates zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{LinesBySource: make(map[string]int)}
}

// Print writes a human-readable summary to stdout.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Ticks                : %d\n", m.Ticks)
	fmt.Printf("Conversations        : %d\n", m.Conversations)
	fmt.Printf("Checkout Lines       : %d\n", m.Serves)
	sources := make([]string, 0, len(m.LinesBySource))
	for s := range m.LinesBySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Printf("  from %-14s: %d\n", s, m.LinesBySource[s])
	}
	fmt.Printf("Store Entries        : %d\n", m.Entries)
	fmt.Printf("Checkouts            : %d\n", m.Checkouts)
	fmt.Printf("Peak Queue Length    : %d\n", m.PeakQueueLen)
	if m.Faults > 0 {
		fmt.Printf("Recovered Faults     : %d\n", m.Faults)
	}
}
