package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/teller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		_ = schemasCmd.Flags().Set("json", "false")
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Equal(t, "teller version "+strings.TrimSpace(teller.Version)+"\n", out)
}

func TestSchemasCommand(t *testing.T) {
	out := execute(t, "schemas")
	assert.Contains(t, out, "transfer_money\n")
	assert.Contains(t, out, "    - to_name: string (required)")
	assert.Contains(t, out, "operations\n")
}

func TestSchemasCommand_JSON(t *testing.T) {
	out := execute(t, "schemas", "--json")
	var specs []struct {
		Name       string
		Parameters map[string]any
	}
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	require.NotEmpty(t, specs)
	assert.Equal(t, "object", specs[0].Parameters["type"])
}
