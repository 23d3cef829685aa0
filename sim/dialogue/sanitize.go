package dialogue

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxWords caps every spoken line.
const MaxWords = 18

const (
	labelMaxLen = 12
	quoteChars  = " \t\r\n\"'`“”‘’"
)

var danglingConjunctions = map[string]bool{
	"and": true, "but": true, "so": true, "because": true, "if": true, "or": true,
}

// Sanitize reduces raw model output to one short spoken line: the first
// non-empty line, unquoted, without a leading "Name:" label, at most MaxWords
// words and ending in terminal punctuation. It returns "" when nothing usable
// remains. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	line := firstLine(raw)
	for {
		prev := line
		line = strings.Trim(line, quoteChars)
		line = stripLabel(line)
		if line == prev {
			break
		}
	}

	words := strings.Fields(line)
	if len(words) > MaxWords {
		words = words[:MaxWords]
	}
	line = strings.Join(words, " ")
	if line == "" || endsTerminal(line) {
		return line
	}

	if last := strings.ToLower(strings.TrimRight(words[len(words)-1], ",;:-")); danglingConjunctions[last] {
		line = strings.Join(words[:len(words)-1], " ")
	}
	line = strings.TrimSpace(strings.TrimRight(line, ",;:- "))
	line = strings.TrimRight(line, quoteChars)
	if line == "" {
		return ""
	}
	if !endsTerminal(line) {
		line += "."
	}
	return line
}

func firstLine(raw string) string {
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// stripLabel removes a short speaker label such as "Bob:" from the first word.
func stripLabel(line string) string {
	first := line
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		first = line[:i]
	}
	idx := strings.IndexByte(first, ':')
	if idx <= 0 || idx > labelMaxLen {
		return line
	}
	if !strings.ContainsFunc(first[:idx], unicode.IsLetter) {
		return line // a clock time, not a label
	}
	return strings.TrimSpace(line[idx+1:])
}

func endsTerminal(line string) bool {
	switch line[len(line)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

var registerWord = regexp.MustCompile(`(?i)\bregister\b`)

// queueWords mark a situation as being about checkout.
var queueWords = []string{"register", "checkout", "line", "purchase"}

// IsQueueSituation reports whether a situational label concerns checkout.
func IsQueueSituation(situational string) bool {
	s := strings.ToLower(situational)
	for _, w := range queueWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// GuardRegister stops the cast fixating on the register. At checkout the
// first mention stays and later ones become "counter"; elsewhere every
// mention becomes "here".
func GuardRegister(line, situational string) string {
	if IsQueueSituation(situational) {
		seen := false
		return registerWord.ReplaceAllStringFunc(line, func(m string) string {
			if !seen {
				seen = true
				return m
			}
			return matchCase(m, "counter")
		})
	}
	return registerWord.ReplaceAllStringFunc(line, func(m string) string {
		return matchCase(m, "here")
	})
}

func matchCase(orig, repl string) string {
	if orig != "" && unicode.IsUpper(rune(orig[0])) {
		return strings.ToUpper(repl[:1]) + repl[1:]
	}
	return repl
}
