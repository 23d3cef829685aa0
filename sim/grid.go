package sim

// Position kinds understood by Grid.PositionsOfKind.
const (
	KindShelf    = "shelf"
	KindRegister = "register"
)

// Grid is the read-only venue the simulation runs on.
// Implementations live in sim/venue/.
type Grid interface {
	// Passable reports whether an actor may stand on the cell.
	// Out-of-bounds cells are never passable.
	Passable(row, col int) bool
	// PositionsOfKind returns every cell of the given kind (KindShelf, KindRegister).
	PositionsOfKind(kind string) []Position
	// QueueEntry is the cell customers walk to when they want to check out.
	QueueEntry() Position
	// RegisterPositions returns the register block cells; may be empty.
	RegisterPositions() []Position
	// DoorPosition returns the entrance, or false if the venue has none.
	DoorPosition() (Position, bool)
	// Situation labels the zone two conversing actors are in, e.g.
	// "by snack shelves" or "standing in the checkout line".
	Situation(a, b Position) string
	// Size returns the grid height and width.
	Size() (rows, cols int)
	// Lines renders the bare floor plan, one string per row.
	Lines() []string
}
