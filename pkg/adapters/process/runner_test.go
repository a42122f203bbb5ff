package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/adapters/process"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests rely on sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipWithoutShell(t)

	runner := process.NewRunner()
	runner.Register("get_balance", "sh", "-c", `echo "balance for $TELLER_ARG_USER_ID"`)
	runner.Register("fail", "sh", "-c", `echo "account locked" >&2; exit 3`)
	runner.Register("silent", "true")

	ctx := context.Background()

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		res, err := runner.Execute(ctx, domain.ToolRequest{
			ID:        "call_1",
			Name:      "get_balance",
			Arguments: map[string]any{"user_id": int64(42)},
		})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "balance for 42", res.Text)
		assert.Equal(t, "call_1", res.ID)
	})

	t.Run("Non-Zero Exit Is Remote Error", func(t *testing.T) {
		res, err := runner.Execute(ctx, domain.ToolRequest{Name: "fail"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "account locked", res.Text)
	})

	t.Run("No Output Is Empty", func(t *testing.T) {
		res, err := runner.Execute(ctx, domain.ToolRequest{Name: "silent"})
		require.NoError(t, err)
		assert.True(t, res.Empty)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Execute(ctx, domain.ToolRequest{Name: "hacker_script"})
		assert.ErrorIs(t, err, domain.ErrUnknownOperation)
	})

	t.Run("Missing Binary", func(t *testing.T) {
		r := process.NewRunner()
		r.Register("ghost", "/nonexistent/teller-tool")
		_, err := r.Execute(ctx, domain.ToolRequest{Name: "ghost"})
		assert.Error(t, err)
	})
}

func TestRunner_Cancellation(t *testing.T) {
	skipWithoutShell(t)

	runner := process.NewRunner(process.WithWaitDelay(100 * time.Millisecond))
	runner.Register("slow", "sleep", "5")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Execute(ctx, domain.ToolRequest{Name: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunner_ConnectorContract(t *testing.T) {
	skipWithoutShell(t)

	runner := process.NewRunner()
	runner.Register("echo_env", "sh", "-c", `echo "to=$TELLER_ARG_TO_NAME"`)

	tests.ConnectorContractTest(t, runner, domain.ToolRequest{
		Name:      "echo_env",
		Arguments: map[string]any{"to_name": "Aibek"},
	}, "to=Aibek")
}

func TestEnvironment(t *testing.T) {
	env := process.Environment(domain.ToolRequest{
		ID:   "r-1",
		Name: "x",
		Arguments: map[string]any{
			"currencies": []string{"USD", "EUR"},
			"amount":     12.5,
			"note":       nil,
		},
	})
	assert.Equal(t, []string{
		"TELLER_REQUEST_ID=r-1",
		"TELLER_ARG_AMOUNT=12.5",
		`TELLER_ARG_CURRENCIES=["USD","EUR"]`,
		"TELLER_ARG_NOTE=",
	}, env)
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "tools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: get_balance
    command: ./balance.sh
    args: ["--json"]
    env:
      LEDGER_URL: http://ledger
  - command: ignored
`), 0o600))

		tools, err := process.LoadTools(path)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "./balance.sh", tools["get_balance"].Command)
		assert.Equal(t, "http://ledger", tools["get_balance"].Environment["LEDGER_URL"])

		r := process.NewRunner(process.WithRegistry(tools))
		assert.Equal(t, []string{"get_balance"}, r.Names())
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "tools.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tools":[{"name":"a","command":"echo"}]}`), 0o600))
		tools, err := process.LoadTools(path)
		require.NoError(t, err)
		assert.Contains(t, tools, "a")
	})

	t.Run("Missing File", func(t *testing.T) {
		tools, err := process.LoadTools(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, tools)
	})

	t.Run("Command Required", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: x\n"), 0o600))
		_, err := process.LoadTools(path)
		assert.ErrorContains(t, err, "command is required")
	})
}
