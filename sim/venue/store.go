// Package venue provides the convenience-store floor plan the simulation runs on.
// A Store is immutable after construction and implements sim.Grid.
package venue

import (
	"fmt"

	"github.com/shopsim/shopsim/sim"
)

// Tile glyphs.
const (
	Wall     = '#'
	Empty    = ' '
	Door     = 'D'
	Counter  = 'r' // counter lip in front of the register block
	Register = 'R'
	Queue    = ':'

	Shelf    = '=' // snack shelves
	Produce  = 'p'
	Drinks   = 'b' // ambient beverage racks
	Fridge   = 'F'
	Freezer  = 'f'
	Coffee   = 'C'
	Magazine = 'm'
	Table    = 't'
)

// Default store dimensions.
const (
	DefaultHeight = 26
	DefaultWidth  = 78
)

var passable = map[rune]bool{Empty: true, Queue: true, Counter: true, Door: true, Register: true}

var merchandise = map[rune]bool{Shelf: true, Produce: true, Drinks: true, Fridge: true, Freezer: true, Coffee: true, Magazine: true}

// situations is checked in order; the first zone found near either actor wins.
var situations = []struct {
	tile  rune
	label string
}{
	{Shelf, "by snack shelves"},
	{Produce, "in the produce section"},
	{Drinks, "near the ambient drink racks"},
	{Fridge, "at the refrigerated coolers"},
	{Freezer, "by the freezer chest"},
	{Coffee, "at the coffee station"},
	{Magazine, "near the magazine rack"},
	{Register, "near the register"},
	{Queue, "standing in the checkout line"},
	{Table, "near the small seating tables"},
}

// SituationAisles is the label used when no themed zone is nearby.
const SituationAisles = "inside the general aisles"

// Store is a rectangular floor plan.
type Store struct {
	height int
	width  int
	grid   [][]rune
}

// NewStore builds the themed store layout at the given size.
// Sizes smaller than the default clip the zones that do not fit.
func NewStore(height, width int) *Store {
	s := &Store{height: height, width: width, grid: make([][]rune, height)}
	for y := range s.grid {
		s.grid[y] = make([]rune, width)
		for x := range s.grid[y] {
			s.grid[y][x] = Empty
		}
	}
	s.build()
	return s
}

// DefaultStore builds the 26x78 store.
func DefaultStore() *Store {
	return NewStore(DefaultHeight, DefaultWidth)
}

// FromLines builds a Store from a literal drawing. Short lines are padded with Empty.
func FromLines(lines []string) (*Store, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("floor plan has no rows")
	}
	width := 0
	for _, l := range lines {
		width = max(width, len([]rune(l)))
	}
	s := &Store{height: len(lines), width: width, grid: make([][]rune, len(lines))}
	for y, l := range lines {
		row := []rune(l)
		for len(row) < width {
			row = append(row, Empty)
		}
		s.grid[y] = row
	}
	return s, nil
}

func (s *Store) set(y, x int, ch rune) {
	if s.inBounds(y, x) {
		s.grid[y][x] = ch
	}
}

func (s *Store) build() {
	h, w := s.height, s.width
	for x := 0; x < w; x++ {
		s.set(0, x, Wall)
		s.set(h-1, x, Wall)
	}
	for y := 0; y < h; y++ {
		s.set(y, 0, Wall)
		s.set(y, w-1, Wall)
	}

	doorX := w / 2
	s.set(h-1, doorX, Door)

	// Register block in the top-right corner with its counter lip below.
	regLeft, regRight := w-14, w-5
	for y := 2; y < 6; y++ {
		for x := regLeft; x < regRight; x++ {
			s.set(y, x, Register)
		}
	}
	for x := regLeft; x < regRight; x++ {
		s.set(6, x, Counter)
	}

	// Queue channel running down from the counter.
	qx := regLeft + 4
	for y := 7; y < 18; y++ {
		s.set(y, qx, Queue)
	}

	for _, r := range []int{4, 7, 10, 13, 16} {
		for c := 6; c < w-20; c++ {
			if (c/5)%2 == 0 {
				s.set(r, c, Shelf)
			}
		}
	}

	for y := 3; y < 8; y++ {
		for x := 2; x < 6; x++ {
			if (x+y)%2 == 0 {
				s.set(y, x, Produce)
			}
		}
	}

	for y := 9; y < 16; y++ {
		if y%2 == 1 {
			s.set(y, 2, Drinks)
			s.set(y, 3, Drinks)
		}
	}

	for y := 2; y < 8; y++ {
		s.set(y, w-30, Fridge)
	}
	for x := w - 35; x < w-31; x++ {
		s.set(8, x, Freezer)
	}

	for x := 12; x < 18; x++ {
		s.set(2, x, Coffee)
	}

	for x := qx - 2; x < qx; x++ {
		s.set(8, x, Magazine)
	}

	for x := doorX - 8; x < doorX-3; x += 2 {
		s.set(h-4, x, Table)
	}
	for x := doorX + 4; x < doorX+9; x += 2 {
		s.set(h-5, x, Table)
	}
}

func (s *Store) inBounds(y, x int) bool {
	return y >= 0 && y < s.height && x >= 0 && x < s.width
}

// Tile returns the glyph at a cell, or Empty when out of bounds.
func (s *Store) Tile(row, col int) rune {
	if !s.inBounds(row, col) {
		return Empty
	}
	return s.grid[row][col]
}

// Passable reports whether an actor may stand on the cell: open floor,
// the queue channel, the counter, the register block and the door.
func (s *Store) Passable(row, col int) bool {
	return s.inBounds(row, col) && passable[s.grid[row][col]]
}

// PositionsOfKind returns all merchandise cells for sim.KindShelf and the
// register block for sim.KindRegister, in row-major order.
func (s *Store) PositionsOfKind(kind string) []sim.Position {
	var match func(rune) bool
	switch kind {
	case sim.KindShelf:
		match = func(r rune) bool { return merchandise[r] }
	case sim.KindRegister:
		match = func(r rune) bool { return r == Register }
	default:
		return nil
	}
	var out []sim.Position
	for y, row := range s.grid {
		for x, ch := range row {
			if match(ch) {
				out = append(out, sim.Position{Row: y, Col: x})
			}
		}
	}
	return out
}

// RegisterPositions returns the register block cells.
func (s *Store) RegisterPositions() []sim.Position {
	return s.PositionsOfKind(sim.KindRegister)
}

// QueueEntry returns the back of the queue channel (its lowest cell).
// Without a queue channel it falls back to the cell below the counter.
func (s *Store) QueueEntry() sim.Position {
	for y := s.height - 1; y >= 0; y-- {
		for x := 0; x < s.width; x++ {
			if s.grid[y][x] == Queue {
				return sim.Position{Row: y, Col: x}
			}
		}
	}
	return sim.Position{Row: 7, Col: max(0, s.width-10)}
}

// DoorPosition returns the first door cell, scanning the bottom wall first.
func (s *Store) DoorPosition() (sim.Position, bool) {
	for y := s.height - 1; y >= 0; y-- {
		for x := 0; x < s.width; x++ {
			if s.grid[y][x] == Door {
				return sim.Position{Row: y, Col: x}, true
			}
		}
	}
	return sim.Position{}, false
}

// Situation labels the zone two actors are in. The cells they occupy are
// checked first, then the ring of cells around them, since shoppers stand
// next to merchandise rather than on it.
func (s *Store) Situation(a, b sim.Position) string {
	if label, ok := s.zoneOf(map[rune]bool{s.Tile(a.Row, a.Col): true, s.Tile(b.Row, b.Col): true}); ok {
		return label
	}
	near := make(map[rune]bool)
	for _, p := range []sim.Position{a, b} {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				near[s.Tile(p.Row+dy, p.Col+dx)] = true
			}
		}
	}
	if label, ok := s.zoneOf(near); ok {
		return label
	}
	return SituationAisles
}

func (s *Store) zoneOf(tiles map[rune]bool) (string, bool) {
	for _, z := range situations {
		if tiles[z.tile] {
			return z.label, true
		}
	}
	return "", false
}

// Size returns the height and width.
func (s *Store) Size() (rows, cols int) {
	return s.height, s.width
}

// Lines renders the floor plan, one string per row.
func (s *Store) Lines() []string {
	out := make([]string, s.height)
	for y, row := range s.grid {
		out[y] = string(row)
	}
	return out
}

var _ sim.Grid = (*Store)(nil)
