package sim

import "fmt"

// Config groups the tick engine's fixed periods, probabilities and ranges.
type Config struct {
	Seed               int64   `yaml:"seed"`
	ConversationPeriod int64   `yaml:"conversation_period"` // ticks between conversation attempts
	OwnerIdlePeriod    int64   `yaml:"owner_idle_period"`   // ticks between owner jitter moves
	ServePeriod        int64   `yaml:"serve_period"`        // owner speaks to the queue front every N ticks
	CheckoutPeriod     int64   `yaml:"checkout_period"`     // queue front leaves every N ticks
	QueueProbability   float64 `yaml:"queue_probability"`   // chance a new goal is the checkout queue
	ShelfWaitMin       int     `yaml:"shelf_wait_min"`      // post-arrival browse wait, inclusive
	ShelfWaitMax       int     `yaml:"shelf_wait_max"`      // upper bound, inclusive
	OffstageMin        int     `yaml:"offstage_min"`        // ticks away after checkout, inclusive
	OffstageMax        int     `yaml:"offstage_max"`        // upper bound, inclusive
	RespawnWaitMin     int     `yaml:"respawn_wait_min"`    // wait at the door after re-entering
	RespawnWaitMax     int     `yaml:"respawn_wait_max"`    // upper bound, inclusive
	LogLimit           int     `yaml:"log_limit"`           // event log ring size
	MemoryCapacity     int     `yaml:"memory_capacity"`     // utterances remembered per speaker
}

// DefaultConfig returns the tuning the store was designed around.
func DefaultConfig() Config {
	return Config{
		Seed:               42,
		ConversationPeriod: 7,
		OwnerIdlePeriod:    20,
		ServePeriod:        9,
		CheckoutPeriod:     15,
		QueueProbability:   0.15,
		ShelfWaitMin:       1,
		ShelfWaitMax:       4,
		OffstageMin:        80,
		OffstageMax:        260,
		RespawnWaitMin:     1,
		RespawnWaitMax:     4,
		LogLimit:           400,
		MemoryCapacity:     DefaultMemoryCapacity,
	}
}

// Validate checks that periods are positive and ranges are ordered.
func (c Config) Validate() error {
	periods := map[string]int64{
		"conversation_period": c.ConversationPeriod,
		"owner_idle_period":   c.OwnerIdlePeriod,
		"serve_period":        c.ServePeriod,
		"checkout_period":     c.CheckoutPeriod,
	}
	for name, v := range periods {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.QueueProbability < 0 || c.QueueProbability > 1 {
		return fmt.Errorf("queue_probability must be in [0, 1], got %f", c.QueueProbability)
	}
	ranges := []struct {
		name   string
		lo, hi int
	}{
		{"shelf_wait", c.ShelfWaitMin, c.ShelfWaitMax},
		{"offstage", c.OffstageMin, c.OffstageMax},
		{"respawn_wait", c.RespawnWaitMin, c.RespawnWaitMax},
	}
	for _, r := range ranges {
		if r.lo < 0 || r.hi < r.lo {
			return fmt.Errorf("%s range [%d, %d] must be non-negative and ordered", r.name, r.lo, r.hi)
		}
	}
	if c.LogLimit <= 0 {
		return fmt.Errorf("log_limit must be positive, got %d", c.LogLimit)
	}
	if c.MemoryCapacity <= 0 {
		return fmt.Errorf("memory_capacity must be positive, got %d", c.MemoryCapacity)
	}
	return nil
}

// ValidateCast checks that names are unique and non-empty and exactly one member owns the shop.
func ValidateCast(members []CastMember) error {
	seen := make(map[string]bool, len(members))
	owners := 0
	for i, m := range members {
		if m.Name == "" {
			return fmt.Errorf("cast[%d]: name must not be empty", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("cast[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Owner {
			owners++
		}
	}
	if owners != 1 {
		return fmt.Errorf("cast must have exactly one owner, got %d", owners)
	}
	return nil
}
