package sim

// CastMember describes one actor to create at simulation start.
type CastMember struct {
	Name        string `yaml:"name"`
	Row         int    `yaml:"row"`
	Col         int    `yaml:"col"`
	Owner       bool   `yaml:"owner"`
	Personality string `yaml:"personality"`
}

// DefaultCast is the shop owner plus seven regulars.
// The owner starts inside the register block of the default store.
func DefaultCast() []CastMember {
	return []CastMember{
		{Name: "Bob", Row: 4, Col: 68, Owner: true, Personality: "Helpful, calm, observant store owner. Focused on smooth checkout and customer satisfaction."},
		{Name: "Alice", Row: 8, Col: 10, Personality: "Curious, upbeat, notices little details on shelves and asks questions."},
		{Name: "Ben", Row: 10, Col: 12, Personality: "Pragmatic, brief, efficiency-minded, dislikes wasted time in line."},
		{Name: "Cara", Row: 9, Col: 14, Personality: "Chatty, friendly, often strikes up light conversations with strangers."},
		{Name: "Drew", Row: 11, Col: 16, Personality: "Sarcastic but good-natured; uses dry humor about products and prices."},
		{Name: "Eve", Row: 12, Col: 18, Personality: "Analytical, detail-oriented; compares ingredients and value meticulously."},
		{Name: "Finn", Row: 8, Col: 20, Personality: "Casual, laid-back; meanders and comments on vibe more than products."},
		{Name: "Gina", Row: 9, Col: 22, Personality: "Energetic, spontaneous; impulse buyer, quick shifts in topic."},
	}
}

// NewCast builds actors from cast members. Validation happens in Config.Validate.
func NewCast(members []CastMember, memoryCapacity int) []*Actor {
	actors := make([]*Actor, 0, len(members))
	for _, m := range members {
		personality := m.Personality
		if personality == "" {
			personality = "Neutral."
		}
		actors = append(actors, NewActor(m.Name, Position{Row: m.Row, Col: m.Col}, m.Owner, personality, memoryCapacity))
	}
	return actors
}
