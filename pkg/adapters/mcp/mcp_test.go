package mcp_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	mcpadapter "github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports/tests"
	"github.com/aretw0/teller/pkg/registry"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.NewOperation("get_balance", "Returns the balance",
			schema.ParamSpec{Name: "language", Kind: schema.KindString, AllowedValues: []string{"ky", "ru", "en"}},
		),
		schema.NewOperation("transfer_money", "Transfers money",
			schema.ParamSpec{Name: "to_name", Kind: schema.KindString, Required: true},
			schema.ParamSpec{Name: "amount", Kind: schema.KindNumber, Required: true},
		),
		schema.NewOperation("get_exchange_rates", "Exchange rates"),
		schema.NewOperation("unimplemented", "Catalog entry without a handler"),
	)
	require.NoError(t, err)
	return reg
}

func newServer(t *testing.T) *mcpadapter.Server {
	t.Helper()
	handlers := registry.NewRegistry()
	handlers.Register("get_balance", func(ctx context.Context, args map[string]any) (string, error) {
		return fmt.Sprintf("user %v: 1000.00 KGS", args["user_id"]), nil
	})
	handlers.Register("transfer_money", func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("ledger unavailable")
	})
	handlers.Register("get_exchange_rates", func(ctx context.Context, args map[string]any) (string, error) {
		return "", nil
	})

	srv, err := mcpadapter.NewServer(newCatalog(t), handlers)
	require.NoError(t, err)
	return srv
}

func TestServer_ExposesOnlyHandledOperations(t *testing.T) {
	srv := newServer(t)
	assert.Equal(t, []string{"get_balance", "transfer_money", "get_exchange_rates"}, srv.Tools())
}

func TestInProcessConnector_Contract(t *testing.T) {
	conn := mcpadapter.NewInProcessConnector(newServer(t).MCPServer())
	assert.Equal(t, mcpadapter.TransportInProcess, conn.Transport())

	tests.ConnectorContractTest(t, conn, domain.ToolRequest{
		ID:        "req-1",
		Name:      "get_balance",
		Arguments: map[string]any{"user_id": 42, "language": "en"},
	}, "user 42")
}

func TestInProcessConnector_ResultKinds(t *testing.T) {
	conn := mcpadapter.NewInProcessConnector(newServer(t).MCPServer())
	ctx := context.Background()

	session, err := conn.Connect(ctx)
	require.NoError(t, err)
	defer session.Close()

	t.Run("RemoteError", func(t *testing.T) {
		res, err := session.Call(ctx, domain.ToolRequest{
			ID:        "req-2",
			Name:      "transfer_money",
			Arguments: map[string]any{"user_id": 1, "to_name": "Aibek", "amount": 10.0},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Text, "ledger unavailable")
		assert.Equal(t, "req-2", res.ID)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		res, err := session.Call(ctx, domain.ToolRequest{
			Name:      "get_exchange_rates",
			Arguments: map[string]any{"user_id": 1},
		})
		require.NoError(t, err)
		assert.True(t, res.Empty)
		assert.False(t, res.IsError)
	})
}

func TestHTTPConnector_Contract(t *testing.T) {
	ts := httptest.NewServer(newServer(t).Handler())
	defer ts.Close()

	conn := mcpadapter.NewHTTPConnector(ts.URL + mcpadapter.EndpointPath)
	tests.ConnectorContractTest(t, conn, domain.ToolRequest{
		Name:      "get_balance",
		Arguments: map[string]any{"user_id": 7},
	}, "user 7")
}

func TestHTTPConnector_SetupFailure(t *testing.T) {
	conn := mcpadapter.NewHTTPConnector("http://127.0.0.1:1" + mcpadapter.EndpointPath)
	_, err := conn.Connect(context.Background())
	assert.Error(t, err)
}
