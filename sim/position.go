package sim

import "fmt"

// Position is a grid cell addressed by row and column.
type Position struct {
	Row int
	Col int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Chebyshev returns the king-move distance between two cells.
func (p Position) Chebyshev(o Position) int {
	return max(abs(p.Row-o.Row), abs(p.Col-o.Col))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
