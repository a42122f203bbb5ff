package locale

import (
	"strings"
	"unicode"
)

var cancelKeywords = []string{
	// en
	"cancel", "stop", "abort", "never mind", "nevermind",
	// ru
	"отмена", "отменить", "отмени", "стоп", "не надо",
	// ky
	"жокко чыгар", "жокко чыгаруу", "токто", "токтот", "керек эмес",
}

// IsCancel reports whether msg, as a whole, asks to abandon the pending
// operation. Keywords of every language are accepted.
func IsCancel(msg string) bool {
	norm := strings.ToLower(strings.TrimFunc(msg, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
	norm = strings.Join(strings.Fields(norm), " ")
	for _, kw := range cancelKeywords {
		if norm == kw {
			return true
		}
	}
	return false
}
