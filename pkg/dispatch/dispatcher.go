// Package dispatch sends validated calls to the tool-execution service.
//
// Every call opens a fresh channel through a ports.Connector, sends exactly one
// request, waits for one response and tears the channel down. Failures are
// reported as *Error values carrying a Kind.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds one round trip, channel setup included.
const DefaultTimeout = 15 * time.Second

// Dispatcher implements ports.Dispatcher.
type Dispatcher struct {
	connector ports.Connector
	timeout   time.Duration
	settings  gobreaker.Settings
	breaker   *gobreaker.CircuitBreaker
	tracer    trace.Tracer
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-call bound. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.timeout = d }
}

// WithLogger sets the logger used for failures.
func WithLogger(l *slog.Logger) Option {
	return func(x *Dispatcher) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(x *Dispatcher) { x.hooks = h }
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(x *Dispatcher) { x.tracer = t }
}

// WithBreaker replaces the circuit breaker settings. Only channel-setup
// failures and timeouts count against the breaker.
func WithBreaker(st gobreaker.Settings) Option {
	return func(x *Dispatcher) { x.settings = st }
}

// WithIDGenerator replaces the request id source.
func WithIDGenerator(fn func() string) Option {
	return func(x *Dispatcher) { x.newID = fn }
}

// New creates a Dispatcher over the given connector.
func New(connector ports.Connector, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		connector: connector,
		timeout:   DefaultTimeout,
		settings:  DefaultBreakerSettings(),
		tracer:    otel.Tracer("github.com/aretw0/teller/pkg/dispatch"),
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.breaker = newBreaker(d.settings, d.logger)
	return d
}

// DefaultBreakerSettings opens the breaker after five consecutive
// unreachable-service failures and probes again after 30 seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "tool-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker(st gobreaker.Settings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	st.IsSuccessful = func(err error) bool {
		var de *Error
		return err == nil || (errors.As(err, &de) && de.Kind == KindRemote)
	}
	if st.OnStateChange == nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// BreakerState reports the circuit breaker state, e.g. for health checks.
func (d *Dispatcher) BreakerState() gobreaker.State { return d.breaker.State() }

// Dispatch sends call and returns the service's result.
// A result with Empty set is not an error; a result the service flagged as an
// error is returned as *Error of KindRemote.
func (d *Dispatcher) Dispatch(ctx context.Context, call domain.ValidatedCall) (domain.ToolResult, error) {
	id := d.newID()
	ctx, span := d.tracer.Start(ctx, "teller.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("teller.operation", call.Name),
		attribute.String("teller.request_id", id),
	)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	event := &domain.DispatchEvent{
		EventBase: domain.EventBase{Timestamp: d.now(), Type: domain.EventDispatch, Identity: call.Identity},
		RequestID: id,
		Operation: call.Name,
	}
	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(ctx, event)
	}

	start := d.now()
	out, err := d.breaker.Execute(func() (any, error) {
		return d.roundTrip(ctx, id, call)
	})

	var result domain.ToolResult
	if err != nil {
		err = d.classify(err, call.Name, id)
	} else {
		result = out.(domain.ToolResult)
	}

	done := *event
	done.Type = domain.EventDispatchDone
	done.Timestamp = d.now()
	done.Duration = done.Timestamp.Sub(start)

	if err != nil {
		var de *Error
		errors.As(err, &de)
		done.ErrorKind = string(de.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(de.Kind))
		d.logger.Error("Dispatch failed",
			"operation", call.Name,
			"identity", call.Identity,
			"request_id", id,
			"kind", de.Kind,
			"error", err,
			logging.TruncateArgs(call.Arguments),
		)
	} else {
		span.SetAttributes(attribute.Bool("teller.empty", result.Empty))
	}
	if d.hooks.OnDispatchDone != nil {
		d.hooks.OnDispatchDone(ctx, &done)
	}
	return result, err
}

func (d *Dispatcher) roundTrip(ctx context.Context, id string, call domain.ValidatedCall) (domain.ToolResult, error) {
	session, err := d.connector.Connect(ctx)
	if err != nil {
		return domain.ToolResult{}, &Error{Kind: d.kindFor(ctx, KindChannelSetup), Operation: call.Name, RequestID: id, Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			d.logger.Debug("Closing tool channel failed", "request_id", id, "error", cerr)
		}
	}()

	res, err := session.Call(ctx, domain.NewToolRequest(id, call))
	if err != nil {
		return domain.ToolResult{}, &Error{Kind: d.kindFor(ctx, KindRemote), Operation: call.Name, RequestID: id, Err: err}
	}
	res.ID = id
	if res.IsError {
		return domain.ToolResult{}, &Error{Kind: KindRemote, Operation: call.Name, RequestID: id, Err: errors.New(res.Text)}
	}
	return res, nil
}

// kindFor reports a timeout instead of fallback when the deadline caused the failure.
func (d *Dispatcher) kindFor(ctx context.Context, fallback Kind) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return fallback
}

func (d *Dispatcher) classify(err error, op, id string) error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	// Rejected by the open breaker without reaching the service.
	return &Error{Kind: KindChannelSetup, Operation: op, RequestID: id, Err: err}
}
