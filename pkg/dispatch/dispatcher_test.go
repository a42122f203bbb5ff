package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/dispatch"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnector answers with a fixed behavior and records what it received.
type fakeConnector struct {
	mu         sync.Mutex
	connectErr error
	call       func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error)
	connects   int
	closes     int
	requests   []domain.ToolRequest
}

func (f *fakeConnector) Connect(ctx context.Context) (ports.ToolSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeSession{f: f}, nil
}

type fakeSession struct{ f *fakeConnector }

func (s *fakeSession) Call(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
	s.f.mu.Lock()
	s.f.requests = append(s.f.requests, req)
	s.f.mu.Unlock()
	return s.f.call(ctx, req)
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.closes++
	return nil
}

func textResult(text string) func(context.Context, domain.ToolRequest) (domain.ToolResult, error) {
	return func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
		return domain.ToolResult{Text: text}, nil
	}
}

var transfer = domain.ValidatedCall{
	Name:      "transfer_money",
	Identity:  "7",
	Arguments: map[string]any{"to_name": "Aizada", "amount": 1000.0, "user_id": int64(7)},
}

func TestDispatch_Success(t *testing.T) {
	conn := &fakeConnector{call: textResult("1000 сом Айзадага которулду")}
	var events []*domain.DispatchEvent
	d := dispatch.New(conn,
		dispatch.WithIDGenerator(func() string { return "req-1" }),
		dispatch.WithHooks(domain.LifecycleHooks{
			OnDispatch:     func(_ context.Context, e *domain.DispatchEvent) { events = append(events, e) },
			OnDispatchDone: func(_ context.Context, e *domain.DispatchEvent) { events = append(events, e) },
		}),
	)

	res, err := d.Dispatch(context.Background(), transfer)
	require.NoError(t, err)
	assert.Equal(t, "1000 сом Айзадага которулду", res.Text)
	assert.Equal(t, "req-1", res.ID)

	require.Len(t, conn.requests, 1)
	assert.Equal(t, "transfer_money", conn.requests[0].Name)
	assert.Equal(t, "req-1", conn.requests[0].ID)
	assert.Equal(t, transfer.Arguments, conn.requests[0].Arguments)
	assert.Equal(t, 1, conn.closes, "channel must be torn down")

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDispatch, events[0].Type)
	assert.Equal(t, domain.EventDispatchDone, events[1].Type)
	assert.Empty(t, events[1].ErrorKind)
	assert.Equal(t, "7", events[1].Identity)
}

func TestDispatch_FreshChannelPerCall(t *testing.T) {
	conn := &fakeConnector{call: textResult("ok")}
	d := dispatch.New(conn)

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background(), transfer)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, conn.connects)
	assert.Equal(t, 3, conn.closes)
	assert.NotEqual(t, conn.requests[0].ID, conn.requests[1].ID)
}

func TestDispatch_EmptyResultIsNotAnError(t *testing.T) {
	conn := &fakeConnector{call: func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
		return domain.ToolResult{Empty: true}, nil
	}}
	res, err := dispatch.New(conn).Dispatch(context.Background(), transfer)
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestDispatch_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		conn     *fakeConnector
		timeout  time.Duration
		kind     dispatch.Kind
		sentinel error
	}{
		{
			name:     "ChannelSetup",
			conn:     &fakeConnector{connectErr: errors.New("connection refused")},
			kind:     dispatch.KindChannelSetup,
			sentinel: domain.ErrChannelSetup,
		},
		{
			name: "RemoteFlagged",
			conn: &fakeConnector{call: func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
				return domain.ToolResult{IsError: true, Text: "insufficient funds"}, nil
			}},
			kind:     dispatch.KindRemote,
			sentinel: domain.ErrRemote,
		},
		{
			name: "RemoteProtocol",
			conn: &fakeConnector{call: func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
				return domain.ToolResult{}, errors.New("tool not found")
			}},
			kind:     dispatch.KindRemote,
			sentinel: domain.ErrRemote,
		},
		{
			name: "Timeout",
			conn: &fakeConnector{call: func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
				<-ctx.Done()
				return domain.ToolResult{}, ctx.Err()
			}},
			timeout:  20 * time.Millisecond,
			kind:     dispatch.KindTimeout,
			sentinel: domain.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []dispatch.Option{}
			if tt.timeout > 0 {
				opts = append(opts, dispatch.WithTimeout(tt.timeout))
			}
			_, err := dispatch.New(tt.conn, opts...).Dispatch(context.Background(), transfer)
			require.Error(t, err)

			var de *dispatch.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.kind, de.Kind)
			assert.Equal(t, "transfer_money", de.Operation)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestDispatch_BreakerOpensOnSetupFailures(t *testing.T) {
	conn := &fakeConnector{connectErr: errors.New("connection refused")}
	st := dispatch.DefaultBreakerSettings()
	st.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 }
	d := dispatch.New(conn, dispatch.WithBreaker(st))

	for i := 0; i < 2; i++ {
		_, err := d.Dispatch(context.Background(), transfer)
		require.ErrorIs(t, err, domain.ErrChannelSetup)
	}
	assert.Equal(t, gobreaker.StateOpen, d.BreakerState())

	_, err := d.Dispatch(context.Background(), transfer)
	assert.ErrorIs(t, err, domain.ErrChannelSetup)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, conn.connects, "open breaker must not reach the service")
}

func TestDispatch_RemoteErrorsKeepBreakerClosed(t *testing.T) {
	conn := &fakeConnector{call: func(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
		return domain.ToolResult{IsError: true, Text: "recipient not found"}, nil
	}}
	st := dispatch.DefaultBreakerSettings()
	st.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	d := dispatch.New(conn, dispatch.WithBreaker(st))

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background(), transfer)
		require.ErrorIs(t, err, domain.ErrRemote)
	}
	assert.Equal(t, gobreaker.StateClosed, d.BreakerState())
}
