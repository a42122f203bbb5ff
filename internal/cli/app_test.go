package cli_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/teller/internal/cli"
	"github.com/aretw0/teller/internal/config"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queuedModel proposes the queued calls in order.
type queuedModel struct {
	mu    sync.Mutex
	queue []domain.ModelResponse
}

func (m *queuedModel) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return domain.ModelResponse{}, errors.New("nothing queued")
	}
	resp := m.queue[0]
	m.queue = m.queue[1:]
	return resp, nil
}

func proposes(calls ...domain.CallProposal) *queuedModel {
	m := &queuedModel{}
	for _, c := range calls {
		m.queue = append(m.queue, domain.ModelResponse{Calls: []domain.CallProposal{c}})
	}
	return m
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Dispatch.Transport = config.TransportInProcess
	cfg.Conversation.Reformat = false
	cfg.Slots.SweepInterval = 0
	return cfg
}

func build(t *testing.T, cfg *config.Config, model *queuedModel) *cli.App {
	t.Helper()
	app, err := cli.Build(context.Background(), cfg, nil, cli.WithModel(model))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

var bakyt = domain.Profile{ID: 1, Name: "Бакыт"}

func say(app *cli.App, msg string) orchestrator.TurnResponse {
	return app.Orchestrator.Handle(context.Background(), orchestrator.TurnRequest{Profile: bakyt, Message: msg})
}

func TestBuild_InProcessBalance(t *testing.T) {
	app := build(t, testConfig(), proposes(domain.CallProposal{Name: "get_balance"}))

	resp := say(app, "Балансым канча?")
	assert.Equal(t, domain.OutcomeDispatched, resp.Outcome)
	assert.Equal(t, "Сиздин бардык эсептериңиздеги жалпы сумма: 168250.00 сом.", resp.Text)
	assert.NotEmpty(t, resp.RequestID)
	assert.NoError(t, app.Health(context.Background()))
}

func TestBuild_TransferAcrossTurns(t *testing.T) {
	app := build(t, testConfig(), proposes(
		domain.CallProposal{Name: "transfer_money", Arguments: map[string]any{"to_name": "Айзада"}},
		domain.CallProposal{Name: "transfer_money", Arguments: map[string]any{"amount": "500"}},
		domain.CallProposal{Name: "get_balance"},
	))

	first := say(app, "Айзадага акча которгум келет")
	require.Equal(t, domain.OutcomeClarify, first.Outcome)
	assert.Equal(t, []string{"amount"}, first.Missing)

	second := say(app, "500 сом")
	require.Equal(t, domain.OutcomeDispatched, second.Outcome)
	assert.Equal(t, "500.00 сом Айзада аттуу адамга ийгиликтүү которулду!", second.Text)

	_, err := app.Orchestrator.Pending(context.Background(), bakyt.Identity())
	assert.ErrorIs(t, err, domain.ErrNoPendingCall)

	assert.Equal(t, "Сиздин бардык эсептериңиздеги жалпы сумма: 167750.00 сом.", say(app, "баланс").Text)
}

func TestBuild_RedisSlotsAreEncrypted(t *testing.T) {
	mr := miniredis.RunT(t)
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Slots.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Slots.EncryptionKeys = []string{base64.StdEncoding.EncodeToString(key)}
	app := build(t, cfg, proposes(domain.CallProposal{Name: "transfer_money", Arguments: map[string]any{"to_name": "Нурлан"}}))

	require.Equal(t, domain.OutcomeClarify, say(app, "Нурланга которуу").Outcome)

	raw, err := mr.Get("teller:slot:1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "Нурлан")

	state, err := app.Orchestrator.Pending(context.Background(), bakyt.Identity())
	require.NoError(t, err)
	assert.Equal(t, "transfer_money", state.Operation)
	assert.Equal(t, "Нурлан", state.Arguments["to_name"])
	assert.NoError(t, app.Health(context.Background()))

	mr.Close()
	assert.Error(t, app.Health(context.Background()))
}

func TestBuild_FileSlotsSurviveRestart(t *testing.T) {
	cfg := testConfig()
	cfg.Slots.Backend = config.BackendFile
	cfg.Slots.Dir = t.TempDir()

	first := build(t, cfg, proposes(domain.CallProposal{Name: "transfer_money", Arguments: map[string]any{"amount": 100}}))
	require.Equal(t, domain.OutcomeClarify, say(first, "100 сом которуу").Outcome)
	require.NoError(t, first.Close())

	second := build(t, cfg, proposes(domain.CallProposal{Name: "transfer_money", Arguments: map[string]any{"to_name": "Нурлан"}}))
	resp := say(second, "Нурланга")
	require.Equal(t, domain.OutcomeDispatched, resp.Outcome)
	assert.Equal(t, "100.00 сом Нурлан аттуу адамга ийгиликтүү которулду!", resp.Text)
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Dispatch.Transport = "carrier-pigeon"
	_, err := cli.Build(context.Background(), cfg, nil, cli.WithModel(proposes()))
	assert.ErrorContains(t, err, "carrier-pigeon")

	cfg = testConfig()
	cfg.Slots.EncryptionKeys = []string{"short"}
	_, err = cli.Build(context.Background(), cfg, nil, cli.WithModel(proposes()))
	assert.ErrorContains(t, err, "slot encryption")

	cfg = testConfig()
	cfg.Conversation.Catalog = "does-not-exist.yaml"
	_, err = cli.Build(context.Background(), cfg, nil, cli.WithModel(proposes()))
	assert.ErrorContains(t, err, "load catalog")
}

func TestAPIHandler(t *testing.T) {
	app := build(t, testConfig(), proposes(domain.CallProposal{Name: "get_balance"}))
	srv := httptest.NewServer(app.APIHandler())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	say(app, "баланс")

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `teller_turns_total{outcome="dispatched"} 1`)
	assert.Contains(t, string(body), `teller_dispatches_total{operation="get_balance",result="ok"} 1`)

	app.Config.Server.Metrics = false
	rec := httptest.NewRecorder()
	app.APIHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
