package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.4.0\n")

	assert.Contains(t, buf.String(), "v0.4.0")
	assert.Contains(t, buf.String(), "|_|")
}

func TestRenderer_PlainWhenNotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, 80, Width(f, 80))

	render := NewRenderer(f, 80)
	assert.Equal(t, "**Балансыңыз:** 100 сом", render("**Балансыңыз:** 100 сом"))
}
