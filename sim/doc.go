// Package sim provides the tick engine for the convenience-store simulation.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - actor.go: Actor fields and the derived state machine (idle, moving, waiting, offstage)
//   - queue.go: how the checkout line is derived from positions each tick
//   - simulator.go: the tick loop, destination choice, serving, offstage and respawn
//
// # Architecture
//
// The sim package defines interfaces and the engine; collaborators live in
// sub-packages:
//   - sim/venue/: the store floor plan (Grid implementation)
//   - sim/dialogue/: topic and thread policy, batch worker, dialogue manager
//   - sim/llm/: OpenAI-compatible generation client and template fallback
//   - sim/trace/: conversation and lifecycle records, zstd JSONL export
//   - sim/transcript/: SQLite transcript sink
//
// # Key Interfaces
//
//   - Grid: passability, shelf and register cells, queue entry, door, situational labels
//   - Dialogue: one line per speaker/listener pair, thread cleanup on exit
//
// Randomness comes from PartitionedRNG so that, for example, adding a dialogue
// draw does not shift movement decisions.
package sim
