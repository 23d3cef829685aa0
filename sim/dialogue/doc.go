// Package dialogue turns adjacency in the store into conversation lines.
//
// A Manager owns the topic and thread policy for one simulation and answers
// sim.Dialogue. Lines come, in order of preference, from a BatchWorker's
// per-pair buffer, a single direct generation call, or the capability's
// template fallback. Every line is passed through Sanitize before it reaches
// the event log, the listener's memory or the pair's thread.
//
// Only the BatchWorker runs on its own goroutine; the Manager, TopicPolicy
// and Threads are used from the tick goroutine alone.
package dialogue
