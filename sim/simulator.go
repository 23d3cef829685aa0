// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shopsim/shopsim/sim/trace"
)

// Situation used when the owner serves the front of the checkout line.
const SituationPurchase = "completing a purchase"

// ownerJitter is the set of moves tried, in random order, for the idle owner.
var ownerJitter = []Position{{0, 0}, {0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// Simulator is the tick engine. It owns the actors and drives movement,
// queueing, the offstage lifecycle and conversation triggers. Tick is not
// reentrant and must be called from a single goroutine.
type Simulator struct {
	Clock    int64
	Config   Config
	Grid     Grid
	Dialogue Dialogue
	Metrics  *Metrics
	Log      *EventLog
	// Trace is optional; a nil trace records nothing.
	Trace *trace.SimulationTrace

	actors []*Actor
	owner  *Actor
	line   *CheckoutLine

	rng          *PartitionedRNG
	movementRNG  *rand.Rand
	lifecycleRNG *rand.Rand
	moodRNG      *rand.Rand
	convoRNG     *rand.Rand
}

// NewSimulator wires a tick engine over grid, cast and dialogue.
// The cast must contain exactly one owner.
func NewSimulator(cfg Config, grid Grid, cast []*Actor, dialogue Dialogue) (*Simulator, error) {
	if grid == nil {
		return nil, errors.New("simulator needs a grid")
	}
	if dialogue == nil {
		return nil, errors.New("simulator needs a dialogue source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	var owner *Actor
	seen := make(map[string]bool, len(cast))
	for _, a := range cast {
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate actor name %q", a.Name)
		}
		seen[a.Name] = true
		if a.IsOwner {
			if owner != nil {
				return nil, fmt.Errorf("cast has more than one owner (%s, %s)", owner.Name, a.Name)
			}
			owner = a
		}
	}
	if owner == nil {
		return nil, errors.New("cast has no owner")
	}

	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	s := &Simulator{
		Config:       cfg,
		Grid:         grid,
		Dialogue:     dialogue,
		Metrics:      NewMetrics(),
		Log:          NewEventLog(cfg.LogLimit),
		actors:       cast,
		owner:        owner,
		line:         &CheckoutLine{},
		rng:          rng,
		movementRNG:  rng.ForSubsystem(SubsystemMovement),
		lifecycleRNG: rng.ForSubsystem(SubsystemLifecycle),
		moodRNG:      rng.ForSubsystem(SubsystemMood),
		convoRNG:     rng.ForSubsystem(SubsystemConversation),
	}
	s.AddLog("Simulation started.")
	return s, nil
}

// AddLog appends msg to the event log stamped with the current tick.
func (sim *Simulator) AddLog(msg string) {
	sim.Log.Add(sim.Clock, msg)
}

// RecentLogs returns up to n of the newest event log entries, oldest first.
func (sim *Simulator) RecentLogs(n int) []string {
	return sim.Log.Recent(n)
}

// Actors returns the population in creation order.
func (sim *Simulator) Actors() []*Actor {
	return append([]*Actor(nil), sim.actors...)
}

// Owner returns the shop owner.
func (sim *Simulator) Owner() *Actor {
	return sim.owner
}

// ActorByName returns the named actor or nil.
func (sim *Simulator) ActorByName(name string) *Actor {
	for _, a := range sim.actors {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Line returns the checkout line as computed on the last tick.
func (sim *Simulator) Line() *CheckoutLine {
	return sim.line
}

// Retune swaps in new periods, probabilities and ranges from cfg. The seed,
// log limit and memory capacity are fixed at construction and keep their
// current values.
func (sim *Simulator) Retune(cfg Config) error {
	cfg.Seed = sim.Config.Seed
	cfg.LogLimit = sim.Config.LogLimit
	cfg.MemoryCapacity = sim.Config.MemoryCapacity
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid simulation config: %w", err)
	}
	sim.Config = cfg
	sim.AddLog("Configuration reloaded.")
	return nil
}

// Tick advances the simulation by one step. forceConversation attempts a
// conversation regardless of the period; verbose adds the source and topic
// of every line to the event log. A panic inside the step is recovered and
// logged so the caller's loop keeps running.
func (sim *Simulator) Tick(forceConversation, verbose bool) {
	sim.Clock++
	sim.Metrics.Ticks = sim.Clock
	defer func() {
		if r := recover(); r != nil {
			sim.Metrics.Faults++
			sim.AddLog(fmt.Sprintf("EXCEPTION: %v", r))
			logrus.Errorf("[tick %07d] recovered fault: %v\n%s", sim.Clock, r, debug.Stack())
		}
	}()

	for _, a := range sim.actors {
		if a.IsOwner {
			continue
		}
		if !a.Active && a.ReturnTick != nil && sim.Clock >= *a.ReturnTick {
			sim.respawn(a)
		}
		if !a.Active {
			continue
		}
		if len(a.Path) == 0 {
			sim.assignDestination(a)
		}
		a.Step()
		a.UpdateMood(sim.moodRNG)
	}

	sim.owner.UpdateMood(sim.moodRNG)
	if sim.Clock%sim.Config.OwnerIdlePeriod == 0 {
		sim.ownerIdleMove()
	}
	if forceConversation || sim.Clock%sim.Config.ConversationPeriod == 0 {
		sim.attemptConversation(verbose)
	}
	sim.updateQueue(verbose)
}

// assignDestination gives an idle customer a new goal: the checkout queue
// with QueueProbability, otherwise a random shelf followed by a browse wait.
func (sim *Simulator) assignDestination(a *Actor) {
	if a.TargetKind == TargetRegister {
		if a.Pos.Col == sim.Grid.QueueEntry().Col {
			return // standing in line
		}
		// The route to the queue was cut short; choose again.
		a.TargetKind = TargetNone
	}
	if sim.movementRNG.Float64() < sim.Config.QueueProbability {
		entry := sim.Grid.QueueEntry()
		a.SetPath(StraightPath(sim.Grid, a.Pos, entry), TargetRegister)
		return
	}
	shelves := sim.Grid.PositionsOfKind(KindShelf)
	if len(shelves) == 0 {
		return
	}
	goal := shelves[sim.movementRNG.Intn(len(shelves))]
	a.SetPath(StraightPath(sim.Grid, a.Pos, goal), TargetShelf)
	a.WaitingTicks = max(a.WaitingTicks, randRange(sim.movementRNG, sim.Config.ShelfWaitMin, sim.Config.ShelfWaitMax))
}

// ownerIdleMove nudges the owner by at most one cell, staying inside the
// bounding box of the register block.
func (sim *Simulator) ownerIdleMove() {
	regs := sim.Grid.RegisterPositions()
	if len(regs) == 0 {
		return
	}
	minR, maxR, minC, maxC := regs[0].Row, regs[0].Row, regs[0].Col, regs[0].Col
	for _, p := range regs[1:] {
		minR, maxR = min(minR, p.Row), max(maxR, p.Row)
		minC, maxC = min(minC, p.Col), max(maxC, p.Col)
	}
	moves := append([]Position(nil), ownerJitter...)
	sim.movementRNG.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
	for _, d := range moves {
		r, c := sim.owner.Pos.Row+d.Row, sim.owner.Pos.Col+d.Col
		if r >= minR && r <= maxR && c >= minC && c <= maxC {
			sim.owner.Pos = Position{Row: r, Col: c}
			return
		}
	}
}

// relevant returns the owner plus every onstage customer.
func (sim *Simulator) relevant() []*Actor {
	out := make([]*Actor, 0, len(sim.actors))
	for _, a := range sim.actors {
		if a.IsOwner || a.Active {
			out = append(out, a)
		}
	}
	return out
}

// ConversationCandidates returns every unordered pair of relevant actors
// standing within one cell of each other.
func (sim *Simulator) ConversationCandidates() [][2]*Actor {
	rel := sim.relevant()
	var pairs [][2]*Actor
	for i, a := range rel {
		for _, b := range rel[i+1:] {
			if a.Pos.Chebyshev(b.Pos) <= 1 {
				pairs = append(pairs, [2]*Actor{a, b})
			}
		}
	}
	return pairs
}

func (sim *Simulator) attemptConversation(verbose bool) {
	pairs := sim.ConversationCandidates()
	if len(pairs) == 0 {
		return
	}
	pair := pairs[sim.convoRNG.Intn(len(pairs))]
	speaker, listener := pair[0], pair[1]
	if sim.convoRNG.Float64() >= 0.5 {
		speaker, listener = listener, speaker
	}
	situational := sim.Grid.Situation(speaker.Pos, listener.Pos)
	sim.speak(speaker, listener, situational, trace.KindChat, verbose)
}

func (sim *Simulator) speak(speaker, listener *Actor, situational, kind string, verbose bool) {
	rel := sim.relevant()
	names := make([]string, len(rel))
	for i, a := range rel {
		names[i] = a.Name
	}
	u := sim.Dialogue.Converse(speaker, listener, situational, sim.Clock, names)
	sim.AddLog(fmt.Sprintf("%s->%s: %s", speaker.Name, listener.Name, u.Line))
	if verbose {
		sim.AddLog(fmt.Sprintf("  (%s, topic: %s, %s)", u.Source, u.Topic, situational))
	}
	logrus.Debugf("[tick %07d] %s->%s via %s", sim.Clock, speaker.Name, listener.Name, u.Source)

	if kind == trace.KindServe {
		sim.Metrics.Serves++
	} else {
		sim.Metrics.Conversations++
	}
	sim.Metrics.LinesBySource[u.Source]++
	sim.Trace.RecordConversation(trace.ConversationRecord{
		Tick:      sim.Clock,
		Kind:      kind,
		Speaker:   speaker.Name,
		Listener:  listener.Name,
		Situation: situational,
		Topic:     u.Topic,
		Source:    u.Source,
		Line:      u.Line,
	})
}

// updateQueue rebuilds the checkout line, moves its front toward the counter
// and, once the front is adjacent, periodically serves and checks it out.
// At most one customer is served and one checked out per tick.
func (sim *Simulator) updateQueue(verbose bool) {
	entry := sim.Grid.QueueEntry()
	sim.line = BuildCheckoutLine(sim.actors, entry.Col)
	sim.Metrics.PeakQueueLen = max(sim.Metrics.PeakQueueLen, sim.line.Len())

	regs := sim.Grid.RegisterPositions()
	first := sim.line.Peek()
	if len(regs) == 0 || first == nil {
		return
	}
	serviceRow := regs[0].Row
	for _, p := range regs[1:] {
		serviceRow = max(serviceRow, p.Row)
	}
	serviceRow++ // the counter in front of the register block

	if first.Pos.Row > serviceRow+1 {
		next := Position{Row: first.Pos.Row - 1, Col: first.Pos.Col}
		if sim.Grid.Passable(next.Row, next.Col) {
			first.Pos = next
		}
		return
	}
	if sim.Clock%sim.Config.ServePeriod == 0 {
		sim.speak(sim.owner, first, SituationPurchase, trace.KindServe, verbose)
	}
	if sim.Clock%sim.Config.CheckoutPeriod == 0 {
		sim.AddLog(fmt.Sprintf("%s leaves after checkout.", first.Name))
		sim.Offstage(first)
	}
}

// Offstage removes a customer from the store until a random return tick and
// forgets every conversation thread they were part of. Memory is kept.
// The owner is never offstaged.
func (sim *Simulator) Offstage(a *Actor) {
	if a.IsOwner || !a.Active {
		return
	}
	returnTick := sim.Clock + int64(randRange(sim.lifecycleRNG, sim.Config.OffstageMin, sim.Config.OffstageMax))
	a.Active = false
	a.ReturnTick = &returnTick
	a.Path = nil
	a.TargetKind = TargetNone
	a.WaitingTicks = 0
	sim.AddLog(fmt.Sprintf("%s exits (will return later).", a.Name))
	sim.Dialogue.DropThreadsInvolving(a.Name)

	sim.Metrics.Checkouts++
	sim.Trace.RecordLifecycle(trace.LifecycleRecord{
		Tick:       sim.Clock,
		Actor:      a.Name,
		Event:      trace.EventCheckout,
		ReturnTick: returnTick,
	})
}

// respawn brings an offstage customer back in through the door, or into a
// fixed lower region of the floor when the venue has no door.
func (sim *Simulator) respawn(a *Actor) {
	a.Active = true
	a.ReturnTick = nil
	if door, ok := sim.Grid.DoorPosition(); ok {
		a.Pos = door
	} else {
		rows, cols := sim.Grid.Size()
		a.Pos = Position{
			Row: randRange(sim.lifecycleRNG, rows/2, rows-3),
			Col: randRange(sim.lifecycleRNG, 2, cols-3),
		}
	}
	a.WaitingTicks = randRange(sim.lifecycleRNG, sim.Config.RespawnWaitMin, sim.Config.RespawnWaitMax)
	sim.AddLog(fmt.Sprintf("%s enters the store.", a.Name))

	sim.Metrics.Entries++
	sim.Trace.RecordLifecycle(trace.LifecycleRecord{Tick: sim.Clock, Actor: a.Name, Event: trace.EventEnter})
}

// RenderableGrid returns the floor plan cropped or padded to maxRows x maxCols
// with every onstage actor's symbol drawn over its cell.
func (sim *Simulator) RenderableGrid(maxRows, maxCols int) []string {
	base := sim.Grid.Lines()
	if maxRows > len(base) {
		maxRows = len(base)
	}
	if maxRows < 0 || maxCols < 0 {
		return nil
	}
	area := make([][]rune, maxRows)
	for i := range area {
		row := []rune(base[i])
		if len(row) > maxCols {
			row = row[:maxCols]
		}
		for len(row) < maxCols {
			row = append(row, ' ')
		}
		area[i] = row
	}
	for _, a := range sim.actors {
		if !a.Active && !a.IsOwner {
			continue
		}
		if a.Pos.Row >= 0 && a.Pos.Row < maxRows && a.Pos.Col >= 0 && a.Pos.Col < maxCols {
			area[a.Pos.Row][a.Pos.Col] = a.Symbol()
		}
	}
	out := make([]string, maxRows)
	for i, row := range area {
		out[i] = string(row)
	}
	return out
}

// ActorView is a read-only snapshot of an actor for presentation layers.
type ActorView struct {
	Name   string
	Symbol rune
	Pos    Position
	Mood   string
	State  ActorState
	Owner  bool
}

// Snapshot returns a view of every actor in creation order.
func (sim *Simulator) Snapshot() []ActorView {
	out := make([]ActorView, len(sim.actors))
	for i, a := range sim.actors {
		out[i] = ActorView{
			Name:   a.Name,
			Symbol: a.Symbol(),
			Pos:    a.Pos,
			Mood:   a.MoodLabel,
			State:  a.State(),
			Owner:  a.IsOwner,
		}
	}
	return out
}

// Status is a one-line summary of the current tick for status bars.
func (sim *Simulator) Status() string {
	onstage := 0
	for _, a := range sim.actors {
		if a.Active && !a.IsOwner {
			onstage++
		}
	}
	return fmt.Sprintf("tick %d | %d in store | line %s", sim.Clock, onstage, strings.Join(sim.line.Names(), ","))
}
