// Package observer streams simulation frames to read-only spectators over
// websockets.
package observer

import "github.com/shopsim/shopsim/sim"

// Frame is the state of the store after one tick.
type Frame struct {
	Tick   int64        `json:"tick"`
	Status string       `json:"status"`
	Line   []string     `json:"line"`
	Actors []ActorFrame `json:"actors"`
	Events []string     `json:"events,omitempty"` // log entries added since the previous frame
	Grid   []string     `json:"grid,omitempty"`
}

// ActorFrame is one actor's overlay.
type ActorFrame struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Mood   string `json:"mood"`
	State  string `json:"state"`
	Owner  bool   `json:"owner,omitempty"`
}

// Capturer builds frames and remembers how much of the event log it has
// already sent. Use one per publishing loop.
type Capturer struct {
	seen     int
	withGrid bool
}

// NewCapturer returns a Capturer; withGrid includes the rendered floor in every frame.
func NewCapturer(withGrid bool) *Capturer {
	return &Capturer{withGrid: withGrid}
}

// Capture snapshots s. Events holds only entries logged since the last call,
// capped by what the bounded log still retains.
func (c *Capturer) Capture(s *sim.Simulator) Frame {
	f := Frame{
		Tick:   s.Clock,
		Status: s.Status(),
		Line:   s.Line().Names(),
	}
	for _, v := range s.Snapshot() {
		if v.State == sim.StateOffstage {
			continue
		}
		f.Actors = append(f.Actors, ActorFrame{
			Name:   v.Name,
			Symbol: string(v.Symbol),
			Row:    v.Pos.Row,
			Col:    v.Pos.Col,
			Mood:   v.Mood,
			State:  string(v.State),
			Owner:  v.Owner,
		})
	}
	if total := s.Log.Total(); total > c.seen {
		f.Events = s.RecentLogs(total - c.seen)
		c.seen = total
	}
	if c.withGrid {
		rows, cols := s.Grid.Size()
		f.Grid = s.RenderableGrid(rows, cols)
	}
	return f
}
