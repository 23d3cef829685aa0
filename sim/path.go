package sim

// StraightPath rasterizes an L-shaped route from start to goal: first along
// the columns, then along the rows, one cell per step. Impassable cells are
// skipped rather than routed around, so the result may be shorter than the
// Manhattan distance and may end short of an impassable goal. The route is
// not obstacle-aware and not a shortest path; start itself is never included.
func StraightPath(g Grid, start, goal Position) []Position {
	var path []Position
	row, col := start.Row, start.Col
	dCol := 1
	if goal.Col < col {
		dCol = -1
	}
	for col != goal.Col {
		col += dCol
		if g.Passable(row, col) {
			path = append(path, Position{Row: row, Col: col})
		}
	}
	dRow := 1
	if goal.Row < row {
		dRow = -1
	}
	for row != goal.Row {
		row += dRow
		if g.Passable(row, col) {
			path = append(path, Position{Row: row, Col: col})
		}
	}
	return path
}
