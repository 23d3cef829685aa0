package dialogue

import (
	"math/rand"
	"sort"
	"strings"
)

// Topics is the conversation catalogue.
var Topics = []string{
	"snack brands",
	"energy drinks",
	"weather outside",
	"local sports score",
	"late-night cravings",
	"new product display",
	"coffee aroma",
	"checkout line speed",
	"music in the background",
	"prices vs last week",
}

// Situational buckets and the topics that suit them.
var situationTopics = map[string][]string{
	"register": {"checkout line speed", "prices vs last week"},
	"shelf":    {"snack brands", "new product display", "prices vs last week"},
	"queue":    {"checkout line speed", "energy drinks"},
	"aisles":   {"late-night cravings", "music in the background", "coffee aroma"},
	"produce":  {"prices vs last week", "late-night cravings"},
	"coffee":   {"coffee aroma", "late-night cravings"},
	"magazine": {"local sports score", "music in the background"},
	"drinks":   {"energy drinks", "prices vs last week"},
	"freezer":  {"late-night cravings", "prices vs last week"},
	"tables":   {"weather outside", "local sports score", "music in the background"},
}

// bucketKeywords is matched in order against the lower-cased situation.
var bucketKeywords = []struct {
	keyword string
	bucket  string
}{
	{"register", "register"},
	{"purchase", "register"},
	{"shel", "shelf"},
	{"checkout", "queue"},
	{"line", "queue"},
	{"produce", "produce"},
	{"coffee", "coffee"},
	{"magazine", "magazine"},
	{"drink", "drinks"},
	{"cooler", "drinks"},
	{"freezer", "freezer"},
	{"table", "tables"},
	{"aisle", "aisles"},
}

const topicJitter = 0.3

// SituationBucket maps a free-form situational label to a topic bucket,
// or "" when nothing matches.
func SituationBucket(situational string) string {
	s := strings.ToLower(situational)
	for _, k := range bucketKeywords {
		if strings.Contains(s, k.keyword) {
			return k.bucket
		}
	}
	return ""
}

// CandidateTopics returns the topics suited to a situation; unrecognised
// situations get the whole catalogue.
func CandidateTopics(situational string) []string {
	if topics, ok := situationTopics[SituationBucket(situational)]; ok {
		return topics
	}
	return Topics
}

// PairKey identifies two actors regardless of who speaks. A <= B.
type PairKey struct {
	A, B string
}

// NewPairKey orders the two names canonically.
func NewPairKey(x, y string) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// Contains reports whether name is one of the pair.
func (k PairKey) Contains(name string) bool {
	return k.A == name || k.B == name
}

func (k PairKey) String() string {
	return k.A + "&" + k.B
}

// DirectedPair is a speaker talking to a listener; line buffers are keyed by it.
type DirectedPair struct {
	Speaker, Listener string
}

// Key drops the direction.
func (d DirectedPair) Key() PairKey {
	return NewPairKey(d.Speaker, d.Listener)
}

func (d DirectedPair) String() string {
	return d.Speaker + "->" + d.Listener
}

// TopicCount is one row of TopicPolicy.Stats.
type TopicCount struct {
	Topic string
	Count int
}

// TopicPolicy picks a topic per pair, favouring under-used topics that suit
// the situation and never repeating the pair's previous topic when an
// alternative exists.
type TopicPolicy struct {
	rng   *rand.Rand
	usage map[string]int
	last  map[PairKey]string
}

// NewTopicPolicy creates a policy with zeroed usage counters.
func NewTopicPolicy(rng *rand.Rand) *TopicPolicy {
	usage := make(map[string]int, len(Topics))
	for _, t := range Topics {
		usage[t] = 0
	}
	return &TopicPolicy{rng: rng, usage: usage, last: make(map[PairKey]string)}
}

// Choose scores every candidate except the pair's last topic as
// 1/(1+usage) plus uniform jitter and returns the best one.
func (p *TopicPolicy) Choose(pair PairKey, situational string) string {
	last := p.last[pair]
	best, bestScore := "", -1.0
	for _, t := range CandidateTopics(situational) {
		if t == last {
			continue
		}
		score := 1/(1+float64(p.usage[t])) + p.rng.Float64()*topicJitter
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	if best == "" {
		var rest []string
		for _, t := range Topics {
			if t != last {
				rest = append(rest, t)
			}
		}
		best = rest[p.rng.Intn(len(rest))]
	}
	p.last[pair] = best
	p.usage[best]++
	return best
}

// Last returns the pair's previous topic, or "".
func (p *TopicPolicy) Last(pair PairKey) string {
	return p.last[pair]
}

// Usage returns how often topic has been chosen.
func (p *TopicPolicy) Usage(topic string) int {
	return p.usage[topic]
}

// Stats returns up to limit topics by descending usage; ties keep catalogue order.
func (p *TopicPolicy) Stats(limit int) []TopicCount {
	out := make([]TopicCount, 0, len(p.usage))
	for _, t := range Topics {
		out = append(out, TopicCount{Topic: t, Count: p.usage[t]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
