package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

// ConnectorContractTest is a reusable test suite that verifies if a transport complies with ports.Connector.
// probe must name an operation the service answers with text containing want.
func ConnectorContractTest(t *testing.T, conn ports.Connector, probe domain.ToolRequest, want string) {
	t.Helper()
	ctx := context.Background()

	call := func(t *testing.T, req domain.ToolRequest) (domain.ToolResult, error) {
		t.Helper()
		session, err := conn.Connect(ctx)
		if err != nil {
			t.Fatalf("unexpected error connecting: %v", err)
		}
		defer session.Close()
		return session.Call(ctx, req)
	}

	// 1. Test Call (Success)
	t.Run("Call_Success", func(t *testing.T) {
		res, err := call(t, probe)
		if err != nil {
			t.Fatalf("unexpected error calling %s: %v", probe.Name, err)
		}
		if res.IsError {
			t.Fatalf("unexpected remote error from %s: %s", probe.Name, res.Text)
		}
		if !strings.Contains(res.Text, want) {
			t.Errorf("result mismatch for %s. got %q, want substring %q", probe.Name, res.Text, want)
		}
	})

	// 2. Test fresh channel per call
	t.Run("Call_Repeatable", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if _, err := call(t, probe); err != nil {
				t.Fatalf("call %d failed: %v", i+1, err)
			}
		}
	})

	// 3. Test Call (Unknown tool)
	t.Run("Call_UnknownTool", func(t *testing.T) {
		res, err := call(t, domain.ToolRequest{Name: "non-existent-tool", Arguments: map[string]any{}})
		if err == nil && !res.IsError {
			t.Errorf("expected an error for unknown tool, got %q", res.Text)
		}
	})
}
