// Defines the Actor struct that models a shopper or the shop owner.
// Tracks position, pending path, wait countdown, onstage/offstage lifecycle and mood.

package sim

import (
	"math/rand"
	"strings"
)

// TargetKind classifies an actor's current goal.
type TargetKind string

const (
	TargetNone     TargetKind = ""
	TargetShelf    TargetKind = "shelf"
	TargetRegister TargetKind = "register"
)

// ActorState is the derived state-machine state of an actor for a given tick.
type ActorState string

const (
	StateIdle     ActorState = "idle"
	StateMoving   ActorState = "moving"
	StateWaiting  ActorState = "waiting"
	StateOffstage ActorState = "offstage"
)

// Mood thresholds. Labels are presentation; thresholds are the contract.
const (
	moodDecay         = 0.9
	moodDrift         = 0.05
	moodElatedAbove   = 0.4
	moodUpbeatAbove   = 0.1
	moodDistressBelow = -0.4
	moodFlatBelow     = -0.1
)

// Mood labels, ordered from lowest to highest score.
const (
	MoodDistressed = "distressed"
	MoodFlat       = "flat"
	MoodNeutral    = "neutral"
	MoodUpbeat     = "upbeat"
	MoodElated     = "elated"
)

// Actor is a simulated person. Exactly one actor in a population has IsOwner set.
type Actor struct {
	Name        string
	Pos         Position
	IsOwner     bool
	Personality string

	Path         []Position // pending cells, front first; empty while offstage
	WaitingTicks int        // ticks to stand still before moving again
	TargetKind   TargetKind // goal classification of Path

	Active     bool   // false while offstage
	ReturnTick *int64 // absolute tick of respawn; nil while active

	MoodScore float64 // clamped to [-1, 1]
	MoodLabel string

	Memory *Memory // what others told this actor, keyed by speaker
}

// NewActor creates an active actor at pos with an empty memory.
func NewActor(name string, pos Position, isOwner bool, personality string, memoryCapacity int) *Actor {
	return &Actor{
		Name:        name,
		Pos:         pos,
		IsOwner:     isOwner,
		Personality: personality,
		Active:      true,
		MoodLabel:   MoodNeutral,
		Memory:      NewMemory(memoryCapacity),
	}
}

// Symbol is the single glyph drawn over the grid for this actor.
func (a *Actor) Symbol() rune {
	if a.Name == "" {
		return '?'
	}
	return []rune(strings.ToUpper(a.Name))[0]
}

// State derives the state-machine state from the actor's fields.
func (a *Actor) State() ActorState {
	switch {
	case !a.Active:
		return StateOffstage
	case a.WaitingTicks > 0:
		return StateWaiting
	case len(a.Path) > 0:
		return StateMoving
	default:
		return StateIdle
	}
}

// SetPath replaces the pending path and goal classification.
func (a *Actor) SetPath(path []Position, kind TargetKind) {
	a.Path = path
	a.TargetKind = kind
}

// Step advances the actor by one tick: a waiting actor only counts down,
// otherwise one cell is consumed off the front of the path.
func (a *Actor) Step() {
	if !a.Active {
		return
	}
	if a.WaitingTicks > 0 {
		a.WaitingTicks--
		return
	}
	if len(a.Path) > 0 {
		a.Pos = a.Path[0]
		a.Path = a.Path[1:]
	}
}

// UpdateMood applies exponential decay plus bounded random drift, then relabels.
func (a *Actor) UpdateMood(rng *rand.Rand) {
	drift := (rng.Float64()*2 - 1) * moodDrift
	a.MoodScore = clamp(a.MoodScore*moodDecay+drift, -1, 1)
	a.MoodLabel = MoodLabel(a.MoodScore)
}

// MoodLabel classifies a mood score into one of five ordered buckets.
func MoodLabel(score float64) string {
	switch {
	case score > moodElatedAbove:
		return MoodElated
	case score > moodUpbeatAbove:
		return MoodUpbeat
	case score < moodDistressBelow:
		return MoodDistressed
	case score < moodFlatBelow:
		return MoodFlat
	default:
		return MoodNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
