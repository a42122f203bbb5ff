package logging

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// MaxArgRunes is the length at which logged argument values are cut.
const MaxArgRunes = 64

// DefaultMaskedKeys are argument keys whose values never reach the logs.
var DefaultMaskedKeys = []string{"card_number", "cvv", "pin", "password", "token"}

// MaskKeys adds keys to DefaultMaskedKeys. Call it once at startup.
func MaskKeys(keys ...string) {
	for _, k := range keys {
		if k != "" && !slices.Contains(DefaultMaskedKeys, k) {
			DefaultMaskedKeys = append(DefaultMaskedKeys, k)
		}
	}
}

// TruncateArgs renders call arguments as a log group. Long values are cut and
// values of masked keys are replaced, so failures can be diagnosed without
// leaking what the user typed.
func TruncateArgs(args map[string]any, masked ...string) slog.Attr {
	if len(masked) == 0 {
		masked = DefaultMaskedKeys
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		if isMasked(k, masked) {
			attrs = append(attrs, slog.String(k, "***"))
			continue
		}
		attrs = append(attrs, slog.String(k, Truncate(fmt.Sprint(args[k]), MaxArgRunes)))
	}
	return slog.Group("args", attrs...)
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func isMasked(key string, masked []string) bool {
	key = strings.ToLower(key)
	for _, m := range masked {
		if strings.Contains(key, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
