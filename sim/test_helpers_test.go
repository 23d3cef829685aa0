package sim

import (
	"fmt"
	"testing"
)

// testGrid is a walled 20x30 room: register block at rows 1-2, cols 20-22,
// queue column 21 with its entry at row 15, door in the bottom wall at col 15
// and a handful of shelf cells. Cells in blocked are impassable.
type testGrid struct {
	rows, cols int
	blocked    map[Position]bool
	shelves    []Position
	registers  []Position
	entry      Position
	door       *Position
}

func newTestGrid() *testGrid {
	door := Position{Row: 19, Col: 15}
	g := &testGrid{
		rows:    20,
		cols:    30,
		blocked: make(map[Position]bool),
		shelves: []Position{{Row: 8, Col: 5}, {Row: 8, Col: 6}, {Row: 12, Col: 10}},
		entry:   Position{Row: 15, Col: 21},
		door:    &door,
	}
	for r := 1; r <= 2; r++ {
		for c := 20; c <= 22; c++ {
			g.registers = append(g.registers, Position{Row: r, Col: c})
		}
	}
	return g
}

func (g *testGrid) Passable(row, col int) bool {
	if g.door != nil && row == g.door.Row && col == g.door.Col {
		return true
	}
	if row <= 0 || col <= 0 || row >= g.rows-1 || col >= g.cols-1 {
		return false
	}
	return !g.blocked[Position{Row: row, Col: col}]
}

func (g *testGrid) PositionsOfKind(kind string) []Position {
	switch kind {
	case KindShelf:
		return g.shelves
	case KindRegister:
		return g.registers
	}
	return nil
}

func (g *testGrid) QueueEntry() Position          { return g.entry }
func (g *testGrid) RegisterPositions() []Position { return g.registers }
func (g *testGrid) Size() (int, int)              { return g.rows, g.cols }

func (g *testGrid) DoorPosition() (Position, bool) {
	if g.door == nil {
		return Position{}, false
	}
	return *g.door, true
}

func (g *testGrid) Situation(a, b Position) string {
	for _, s := range g.shelves {
		if a.Chebyshev(s) <= 1 || b.Chebyshev(s) <= 1 {
			return "by snack shelves"
		}
	}
	return "inside the general aisles"
}

func (g *testGrid) Lines() []string {
	out := make([]string, g.rows)
	for r := range out {
		row := make([]rune, g.cols)
		for c := range row {
			switch {
			case !g.Passable(r, c):
				row[c] = '#'
			default:
				row[c] = ' '
			}
		}
		out[r] = string(row)
	}
	return out
}

// scriptedDialogue answers every conversation with a fixed line and records calls.
type scriptedDialogue struct {
	line    string
	calls   []string // "speaker->listener@situation"
	dropped []string
	panics  bool
}

func (d *scriptedDialogue) Converse(speaker, listener *Actor, situational string, tick int64, activeNames []string) Utterance {
	if d.panics {
		panic("dialogue exploded")
	}
	d.calls = append(d.calls, fmt.Sprintf("%s->%s@%s", speaker.Name, listener.Name, situational))
	return Utterance{Line: d.line, Topic: "weather outside", Source: "template"}
}

func (d *scriptedDialogue) DropThreadsInvolving(name string) {
	d.dropped = append(d.dropped, name)
}

// quietConfig disables periodic conversations and owner jitter so tests
// control every trigger.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.ConversationPeriod = 1 << 40
	cfg.OwnerIdlePeriod = 1 << 40
	return cfg
}

// newTestSimulator builds a simulator over grid with Bob as owner at (1, 21)
// and the given customers.
func newTestSimulator(t testing.TB, cfg Config, grid Grid, d Dialogue, customers ...*Actor) *Simulator {
	t.Helper()
	cast := append([]*Actor{NewActor("Bob", Position{Row: 1, Col: 21}, true, "owner", 10)}, customers...)
	s, err := NewSimulator(cfg, grid, cast, d)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

func customer(name string, row, col int) *Actor {
	return NewActor(name, Position{Row: row, Col: col}, false, "shopper", 10)
}
