package dialogue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t ", ""},
		{"plain sentence", "Did you see the game?", "Did you see the game?"},
		{"first line only", "Hi there.\nSecond line.", "Hi there."},
		{"skips blank leading lines", "\n\n  Morning!", "Morning!"},
		{"strips quotes", `"Coffee smells great today."`, "Coffee smells great today."},
		{"strips smart quotes", "“Busy tonight.”", "Busy tonight."},
		{"collapses spaces", "Too    many   spaces here.", "Too many spaces here."},
		{"strips label", "Bob: Need a bag?", "Need a bag?"},
		{"strips label inside quotes", `"Alice: Love these chips!"`, "Love these chips!"},
		{"long label kept", "Announcement-for-all: store closes soon.", "Announcement-for-all: store closes soon."},
		{"clock time kept", "10:30 is late for coffee.", "10:30 is late for coffee."},
		{"adds period", "I like this place", "I like this place."},
		{"drops trailing conjunction", "I want chips and", "I want chips."},
		{"drops conjunction with comma", "Prices went up, but,", "Prices went up."},
		{"strips stray punctuation", "Line is moving slowly;", "Line is moving slowly."},
		{"only conjunction", "because", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitize_CapsWords(t *testing.T) {
	raw := strings.Repeat("word ", 30)
	got := Sanitize(raw)
	assert.Len(t, strings.Fields(got), MaxWords)
	assert.True(t, strings.HasSuffix(got, "."))
}

func TestSanitize_Idempotent(t *testing.T) {
	// GIVEN a mix of messy model outputs
	inputs := []string{
		"",
		`  "Bob: hey, you want the usual and"  `,
		"'Alice:   \"Eve: nested labels, so'",
		"1. first candidate\n2. second",
		strings.Repeat("long ", 25) + "\"quoted",
		"Did you catch the score?!",
		"Wait - ",
		"So, so",
		"Hmm…",
		"“x”:  “y”",
		"The register line, or",
	}
	for _, in := range inputs {
		// WHEN sanitizing twice
		once := Sanitize(in)
		twice := Sanitize(once)

		// THEN the second pass changes nothing
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestGuardRegister(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		situational string
		want        string
	}{
		{"queue keeps first mention", "The register is slow, that register always is.", "standing in the checkout line", "The register is slow, that counter always is."},
		{"purchase counts as queue", "Register register register!", "completing a purchase", "Register counter counter!"},
		{"elsewhere replaced", "Meet me by the register.", "by snack shelves", "Meet me by the here."},
		{"capitalised replacement", "Register is over there.", "in the produce section", "Here is over there."},
		{"word boundary", "Registered users only.", "by snack shelves", "Registered users only."},
		{"no mention", "Nice chips.", "near the register", "Nice chips."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GuardRegister(tt.line, tt.situational))
		})
	}
}

func TestCleanCandidates(t *testing.T) {
	raw := "1. \"First line.\"\n2) Second line!\n\n- Third?\n* Fourth.\n• Fifth.\n   \nSixth.\nSeventh."

	got := CleanCandidates(raw, 6)

	assert.Equal(t, []string{"First line.", "Second line!", "Third?", "Fourth.", "Fifth.", "Sixth."}, got)
	assert.Empty(t, CleanCandidates("\n  \n\"\"", 6))
	assert.Equal(t, []string{"2024 was odd."}, CleanCandidates("2024 was odd.", 6), "digits without a list marker are kept")
}
