package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelInfo, "json")
	l.Info("boom", "error", "bad")
	assert.Contains(t, buf.String(), `"err":"bad"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestTruncateArgs(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelInfo, "text")
	l.Info("call", TruncateArgs(map[string]any{
		"to_name":     "Aigul",
		"card_number": "4111111111111111",
		"note":        strings.Repeat("x", 100),
	}))

	out := buf.String()
	assert.Contains(t, out, "args.to_name=Aigul")
	assert.Contains(t, out, "args.card_number=***")
	assert.NotContains(t, out, "4111")
	assert.NotContains(t, out, strings.Repeat("x", 65))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "абв", Truncate("абв", 3))
	assert.Equal(t, "аб…", Truncate("абв", 2))
}

func TestMaskKeys(t *testing.T) {
	saved := DefaultMaskedKeys
	t.Cleanup(func() { DefaultMaskedKeys = saved })
	DefaultMaskedKeys = append([]string(nil), saved...)

	MaskKeys("passport", "pin", "")
	assert.Contains(t, DefaultMaskedKeys, "passport")
	assert.Len(t, DefaultMaskedKeys, len(saved)+1)

	var buf bytes.Buffer
	newLogger(&buf, slog.LevelInfo, "text").Info("call", TruncateArgs(map[string]any{"passport_no": "AN123"}))
	assert.Contains(t, buf.String(), "args.passport_no=***")
}
