package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/orchestrator"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockService for testing
type MockService struct {
	turns     []orchestrator.TurnRequest
	cancelled []string
	pending   map[string]*domain.PendingSlotState
	registry  *schema.Registry
}

func (m *MockService) Handle(ctx context.Context, req orchestrator.TurnRequest) orchestrator.TurnResponse {
	m.turns = append(m.turns, req)
	return orchestrator.TurnResponse{
		Text:      "echo: " + req.Message,
		Outcome:   domain.OutcomeDispatched,
		Language:  domain.Kyrgyz,
		Operation: "get_balance",
		RequestID: "req-42",
	}
}

func (m *MockService) Cancel(ctx context.Context, identity string) error {
	m.cancelled = append(m.cancelled, identity)
	return nil
}

func (m *MockService) Pending(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	if p, ok := m.pending[identity]; ok {
		return p, nil
	}
	return nil, domain.ErrNoPendingCall
}

func (m *MockService) Registry() *schema.Registry { return m.registry }

func newMock(t *testing.T) *MockService {
	t.Helper()
	reg, err := schema.NewRegistry(schema.NewOperation("get_balance", "Returns the balance"))
	require.NoError(t, err)
	return &MockService{
		registry: reg,
		pending: map[string]*domain.PendingSlotState{
			"7": {Identity: "7", Operation: "transfer_money", Arguments: map[string]any{"to_name": "Aizada"}, Missing: []string{"amount"}},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChat(t *testing.T) {
	svc := newMock(t)
	h := NewHandler(svc)

	w := do(t, h, http.MethodPost, "/v1/chat", ChatRequest{
		Profile:  domain.Profile{ID: 7, Name: "Bakyt"},
		Message:  "balance?",
		History:  []domain.Turn{{Message: "hi", Response: "hello"}},
		Language: domain.Russian,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Dispatch-Id"))

	var resp orchestrator.TurnResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "echo: balance?", resp.Text)
	assert.Equal(t, domain.OutcomeDispatched, resp.Outcome)
	assert.Empty(t, resp.RequestID, "request id is not part of the body")

	require.Len(t, svc.turns, 1)
	assert.Equal(t, domain.Russian, svc.turns[0].Language)
	assert.Len(t, svc.turns[0].History, 1)
}

func TestChat_BadRequests(t *testing.T) {
	h := NewHandler(newMock(t))

	tests := []struct {
		name string
		body any
	}{
		{"NotJSON", "not an object"},
		{"NoProfile", ChatRequest{Message: "hi"}},
		{"NoMessage", ChatRequest{Profile: domain.Profile{ID: 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPendingEndpoints(t *testing.T) {
	svc := newMock(t)
	h := NewHandler(svc)

	w := do(t, h, http.MethodGet, "/v1/sessions/7/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.PendingSlotState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, "transfer_money", state.Operation)

	w = do(t, h, http.MethodGet, "/v1/sessions/8/pending", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/v1/sessions/7/pending", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"7"}, svc.cancelled)
}

func TestOperations(t *testing.T) {
	w := do(t, NewHandler(newMock(t)), http.MethodGet, "/v1/operations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ops []OperationInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ops))
	require.Len(t, ops, 1)
	assert.Equal(t, "get_balance", ops[0].Name)
	assert.Equal(t, "object", ops[0].Parameters["type"])
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("teller_turns_total 1\n"))
	})

	healthy := true
	h := NewHandler(newMock(t),
		WithMetricsHandler(metrics),
		WithHealthCheck(func(ctx context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("redis: connection refused")
		}),
	)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz", nil).Code)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "teller_turns_total")
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(newMock(t), WithAllowedOrigins("https://bank.example"))

	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	req.Header.Set("Origin", "https://bank.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://bank.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChat_RateLimitPerIdentity(t *testing.T) {
	svc := newMock(t)
	h := NewHandler(svc, WithRateLimit(1, 2))

	send := func(id int64) int {
		return do(t, h, http.MethodPost, "/v1/chat", ChatRequest{Profile: domain.Profile{ID: id}, Message: "hi"}).Code
	}
	assert.Equal(t, http.StatusOK, send(7))
	assert.Equal(t, http.StatusOK, send(7))
	assert.Equal(t, http.StatusTooManyRequests, send(7))
	assert.Equal(t, http.StatusOK, send(8))
	assert.Len(t, svc.turns, 3)
}

func TestChat_RateLimitersOfIdleIdentitiesArePruned(t *testing.T) {
	svc := newMock(t)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var srv *Server
	h := NewHandler(svc, WithRateLimit(1, 2), func(s *Server) {
		srv = s
		s.now = func() time.Time { return clock }
	})

	send := func(id int64) int {
		return do(t, h, http.MethodPost, "/v1/chat", ChatRequest{Profile: domain.Profile{ID: id}, Message: "hi"}).Code
	}
	require.Equal(t, http.StatusOK, send(7))
	require.Equal(t, http.StatusOK, send(7))
	require.Equal(t, http.StatusOK, send(8))
	assert.Len(t, srv.limiters, 2)

	// 8 has refilled after a minute, 7 is still short of a full bucket.
	clock = clock.Add(61 * time.Second)
	require.Equal(t, http.StatusOK, send(9))
	assert.Len(t, srv.limiters, 2)
	assert.Contains(t, srv.limiters, "7")
	assert.NotContains(t, srv.limiters, "8")
}
