package extract

import (
	"strings"

	"github.com/aretw0/teller/pkg/domain"
)

// MarkerPrefix opens an embedded call block; the block ends at the first
// closing bracket outside a quoted value.
const MarkerPrefix = "[FUNC_CALL:"

// nameKey carries the operation name inside a marker block.
const nameKey = "name"

// ParseMarker finds the first well-formed call block in text.
// found is false when the text holds no block, which makes it a direct answer.
func ParseMarker(text string) (call domain.CallProposal, found bool, err error) {
	b, ok := findBlock(text)
	if !ok {
		return domain.CallProposal{}, false, nil
	}
	body := b.body

	fail := func(reason string) (domain.CallProposal, bool, error) {
		return domain.CallProposal{}, true, &ParseError{Text: text, Block: body, Reason: reason}
	}

	args := make(map[string]any)
	name := ""
	for _, segment := range splitTopLevel(body) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return fail("segment without '=': " + segment)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fail("empty key")
		}
		value = unquote(strings.TrimSpace(value))
		if key == nameKey && name == "" {
			name = value
			continue
		}
		args[key] = value
	}
	if name == "" {
		return fail("missing operation name")
	}
	return domain.CallProposal{Name: name, Arguments: args}, true, nil
}

// StripMarker removes the call block ParseMarker would read from text,
// leaving the surrounding prose.
func StripMarker(text string) string {
	b, ok := findBlock(text)
	if !ok {
		return text
	}
	before, after := strings.TrimSpace(text[:b.start]), strings.TrimSpace(text[b.end+1:])
	return strings.TrimSpace(before + " " + after)
}

// block is a located call block: text[start:end+1] is the whole marker.
type block struct {
	start, end int
	body       string
}

// findBlock returns the first call block with a non-empty body.
func findBlock(text string) (block, bool) {
	offset := 0
	for {
		start := strings.Index(text[offset:], MarkerPrefix)
		if start < 0 {
			return block{}, false
		}
		start += offset
		from := start + len(MarkerPrefix)
		end := closingBracket(text, from)
		if end < 0 {
			return block{}, false
		}
		if body := strings.TrimSpace(text[from:end]); body != "" {
			return block{start: start, end: end, body: body}, true
		}
		offset = end + 1
	}
}

// closingBracket returns the index of the bracket ending the block that starts
// at from. When quotes do not balance it falls back to the first ']'.
func closingBracket(text string, from int) int {
	if _, end, _ := scanBlock(text, from); end >= 0 {
		return end
	}
	if i := strings.IndexByte(text[from:], ']'); i >= 0 {
		return from + i
	}
	return -1
}

// scanBlock walks s from the given offset and reports the top-level commas,
// the closing bracket (-1 when absent) and whether a quote was left open.
// A quote opens only as the first non-space character of a value and closes
// only before ',', ']' or the end of s, so apostrophes inside names such as
// O'Neil or 'G'ulnora' stay literal.
func scanBlock(s string, from int) (commas []int, end int, open bool) {
	var quote byte
	valueStart := false
	for i := from; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && endsValue(s, i+1) {
				quote = 0
			}
			continue
		}
		switch c {
		case ' ', '\t':
			continue
		case '=':
			valueStart = true
			continue
		case '\'', '"':
			if valueStart {
				quote = c
			}
		case ',':
			commas = append(commas, i)
		case ']':
			return commas, i, false
		}
		valueStart = false
	}
	return commas, -1, quote != 0
}

// endsValue reports whether only blanks separate i from a ',', a ']' or the end.
func endsValue(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t':
		case ',', ']':
			return true
		default:
			return false
		}
	}
	return true
}

// splitTopLevel splits on commas that are not inside quoted values. With an
// unbalanced quote every comma separates.
func splitTopLevel(s string) []string {
	commas, _, open := scanBlock(s, 0)
	if open {
		return strings.Split(s, ",")
	}
	var parts []string
	start := 0
	for _, i := range commas {
		parts = append(parts, s[start:i])
		start = i + 1
	}
	return append(parts, s[start:])
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '\'' || first == '"') && first == last {
			return strings.TrimSpace(v[1 : len(v)-1])
		}
	}
	return strings.Trim(v, `'"`)
}
