package voice

import "strings"

// DefaultExitPhrases end a conversation when spoken or typed.
var DefaultExitPhrases = []string{"exit", "quit", "goodbye", "bye bye"}

const (
	Greeting = "Hello! I'm your AI voice assistant. I'm ready to help!"
	Farewell = "Goodbye! It was great talking with you."
)

// IsExit reports whether text contains one of the phrases as whole words.
// Punctuation is ignored, so "Goodbye!" and "ok, bye bye." both match.
func IsExit(text string, phrases []string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	if len(words) == 0 {
		return false
	}
	joined := " " + strings.Join(words, " ") + " "
	for _, p := range phrases {
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if p != "" && strings.Contains(joined, " "+p+" ") {
			return true
		}
	}
	return false
}
