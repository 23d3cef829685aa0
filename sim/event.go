package sim

import "fmt"

// EventLog is a bounded ring of human-readable simulation events,
// each prefixed with the tick it happened on.
type EventLog struct {
	limit   int
	entries []string
	total   int
	// OnAppend, when set, receives every formatted entry as it is added.
	OnAppend func(entry string)
}

// NewEventLog creates an EventLog keeping the newest limit entries.
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = 1
	}
	return &EventLog{limit: limit}
}

// Add formats msg as "[00042] msg" and appends it.
func (l *EventLog) Add(tick int64, msg string) {
	entry := fmt.Sprintf("[%05d] %s", tick, msg)
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.limit {
		l.entries = append(l.entries[:0:0], l.entries[len(l.entries)-l.limit:]...)
	}
	l.total++
	if l.OnAppend != nil {
		l.OnAppend(entry)
	}
}

// Recent returns up to n of the newest entries, oldest first.
func (l *EventLog) Recent(n int) []string {
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]string(nil), l.entries[len(l.entries)-n:]...)
}

// Total returns how many entries were ever added, including evicted ones.
func (l *EventLog) Total() int {
	return l.total
}
