package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/coerce"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/extract"
	"github.com/aretw0/teller/pkg/locale"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/aretw0/teller/pkg/session"
)

const (
	// DefaultHistoryTurns is how many past exchanges reach the model.
	DefaultHistoryTurns = 2
	// DefaultModelTimeout bounds one model invocation.
	DefaultModelTimeout = 60 * time.Second
)

// TurnRequest is one incoming message with the context the web layer holds.
type TurnRequest struct {
	Profile  domain.Profile  `json:"profile"`
	Message  string          `json:"message"`
	History  []domain.Turn   `json:"history,omitempty"`
	Language domain.Language `json:"language,omitempty"` // Empty uses the default language
}

// TurnResponse is the text shown to the user and how the turn ended.
type TurnResponse struct {
	Text      string             `json:"text"`
	Outcome   domain.TurnOutcome `json:"outcome"`
	Language  domain.Language    `json:"language"`
	Operation string             `json:"operation,omitempty"`
	Missing   []string           `json:"missing,omitempty"` // Set while awaiting arguments
	RequestID string             `json:"-"`
}

// Orchestrator wires the mediation pipeline together.
type Orchestrator struct {
	model       ports.Model
	registry    *schema.Registry
	sessions    *session.Manager
	dispatcher  ports.Dispatcher
	reformatter ports.Reformatter
	extractor   *extract.Extractor
	coercer     *coerce.Coercer

	identityKey  string
	toolCalling  bool
	historyTurns int
	maxInput     int
	modelTimeout time.Duration
	defaultLang  domain.Language
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReformatter enables post-processing for operations flagged for it.
func WithReformatter(r ports.Reformatter) Option {
	return func(o *Orchestrator) { o.reformatter = r }
}

// WithToolCalling passes the catalog as structured tools instead of listing
// it in the instruction for the text marker syntax.
func WithToolCalling(enabled bool) Option {
	return func(o *Orchestrator) { o.toolCalling = enabled }
}

// WithHistoryTurns sets how many past exchanges are sent to the model.
func WithHistoryTurns(n int) Option {
	return func(o *Orchestrator) { o.historyTurns = n }
}

// WithMaxInputSize sets the message size limit in bytes.
func WithMaxInputSize(n int) Option {
	return func(o *Orchestrator) { o.maxInput = n }
}

// WithModelTimeout bounds the model call. Zero disables the bound.
func WithModelTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.modelTimeout = d }
}

// WithDefaultLanguage sets the language for requests that carry none.
func WithDefaultLanguage(lang domain.Language) Option {
	return func(o *Orchestrator) { o.defaultLang = lang }
}

// WithIdentityKey sets the argument name the identity is injected under.
func WithIdentityKey(key string) Option {
	return func(o *Orchestrator) {
		if key != "" {
			o.identityKey = key
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

// WithLogger sets the logger shared by the pipeline stages.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(model ports.Model, registry *schema.Registry, sessions *session.Manager, dispatcher ports.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:        model,
		registry:     registry,
		sessions:     sessions,
		dispatcher:   dispatcher,
		identityKey:  coerce.DefaultIdentityKey,
		historyTurns: DefaultHistoryTurns,
		maxInput:     DefaultMaxInputSize,
		modelTimeout: DefaultModelTimeout,
		defaultLang:  domain.Kyrgyz,
		logger:       logging.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.extractor = extract.New(extract.WithLogger(o.logger))
	o.coercer = coerce.New(registry,
		coerce.WithIdentityKey(o.identityKey),
		coerce.WithLogger(o.logger),
	)
	return o
}

// Registry returns the schema registry the orchestrator validates against.
func (o *Orchestrator) Registry() *schema.Registry { return o.registry }

// Handle runs one turn. It never fails: errors and panics become a fixed
// apology in the caller's language.
func (o *Orchestrator) Handle(ctx context.Context, req TurnRequest) (resp TurnResponse) {
	start := o.now()
	lang := domain.ParseLanguage(string(req.Language), o.defaultLang)
	identity := req.Profile.Identity()

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Turn panicked", "identity", identity, "panic", p)
			resp = o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
		}
		resp.Language = lang
		o.logger.Info("Turn handled",
			"identity", identity,
			"outcome", resp.Outcome,
			"operation", resp.Operation,
			"duration", o.now().Sub(start),
		)
		if o.hooks.OnTurn != nil {
			o.hooks.OnTurn(ctx, &domain.TurnEvent{
				EventBase: domain.EventBase{Timestamp: o.now(), Type: domain.EventTurn, Identity: identity},
				Outcome:   resp.Outcome,
				Operation: resp.Operation,
				Duration:  o.now().Sub(start),
			})
		}
	}()

	message, err := SanitizeInput(req.Message, o.maxInput)
	if err != nil {
		o.logger.Warn("Input rejected", "identity", identity, "size", len(req.Message), "error", err)
		return o.reply(lang, locale.KeyInputRejected, domain.OutcomeFailed)
	}

	err = o.sessions.WithLock(ctx, identity, func(ctx context.Context, slots session.Slots) error {
		resp = o.turn(ctx, req, message, lang, slots)
		return nil
	})
	if err != nil {
		o.logger.Error("Turn could not acquire identity lock", "identity", identity, "error", err)
		return o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
	}
	return resp
}

// turn runs under the identity lock.
func (o *Orchestrator) turn(ctx context.Context, req TurnRequest, message string, lang domain.Language, slots session.Slots) TurnResponse {
	identity := slots.Identity()

	pending, err := slots.Pending(ctx)
	if err != nil {
		// A broken store must not block answers that need no pending state.
		o.logger.Error("Pending state unavailable", "identity", identity, "error", err)
		pending = nil
	}

	if locale.IsCancel(message) && err == nil && pending == nil {
		return o.reply(lang, locale.KeyNothingToCancel, domain.OutcomeText)
	}
	if pending != nil && locale.IsCancel(message) {
		if err := o.clear(ctx, slots, pending.Operation); err != nil {
			o.logger.Error("Cancel failed", "identity", identity, "error", err)
			return o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
		}
		resp := o.reply(lang, locale.KeyCancelled, domain.OutcomeCancelled)
		resp.Operation = pending.Operation
		return resp
	}

	builder := promptBuilder{
		registry:     o.registry,
		identityKey:  o.identityKey,
		historyTurns: o.historyTurns,
		toolCalling:  o.toolCalling,
	}
	modelResp, err := o.complete(ctx, builder.build(req, message, lang, pending))
	if err != nil {
		o.logger.Error("Model invocation failed", "identity", identity, "error", err)
		return o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
	}

	result, err := o.extractor.Extract(modelResp)
	if err != nil {
		var perr *extract.ParseError
		if errors.As(err, &perr) {
			o.logger.Warn("Malformed call block answered as text", "identity", identity, "reason", perr.Reason)
		}
	}
	if !result.IsCall() {
		if result.Text == "" {
			o.logger.Warn("Model returned neither text nor call", "identity", identity)
			return o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
		}
		return TurnResponse{Text: result.Text, Outcome: domain.OutcomeText}
	}

	return o.call(ctx, *result.Call, lang, pending, slots)
}

func (o *Orchestrator) complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	if o.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.modelTimeout)
		defer cancel()
	}
	return o.model.Complete(ctx, req)
}

// call runs a proposal through coercion, slot filling and dispatch.
func (o *Orchestrator) call(ctx context.Context, proposal domain.CallProposal, lang domain.Language, pending *domain.PendingSlotState, slots session.Slots) TurnResponse {
	identity := slots.Identity()

	outcome, err := o.coercer.Coerce(proposal.Name, proposal.Arguments, pending, identity)
	if err != nil {
		o.logger.Warn("Model proposed an unknown operation",
			"identity", identity, "operation", proposal.Name, logging.TruncateArgs(proposal.Arguments))
		return o.reply(lang, locale.KeyUnknownOperation, domain.OutcomeUnknown)
	}
	if len(outcome.Dropped) > 0 || len(outcome.OutOfEnum) > 0 {
		o.logger.Info("Arguments adjusted",
			"identity", identity,
			"operation", proposal.Name,
			"dropped", outcome.Dropped,
			"out_of_enum", outcome.OutOfEnum,
		)
	}

	if outcome.Status == coerce.NeedsInput {
		if _, err := slots.Put(ctx, proposal.Name, outcome.Arguments, outcome.Missing); err != nil {
			o.logger.Error("Saving pending state failed", "identity", identity, "operation", proposal.Name, "error", err)
			return o.reply(lang, locale.KeyTechnicalError, domain.OutcomeFailed)
		}
		o.slotEvent(ctx, identity, domain.SlotSaved, proposal.Name, outcome.Missing)

		return TurnResponse{
			Text:      locale.Clarification(lang, proposal.Name, outcome.Missing, o.describeParam(outcome.Operation, lang)),
			Outcome:   domain.OutcomeClarify,
			Operation: proposal.Name,
			Missing:   outcome.Missing,
		}
	}

	result, err := o.dispatcher.Dispatch(ctx, outcome.Call)
	if err != nil {
		// Pending state stays as it was so the user can retry.
		resp := o.reply(lang, locale.KeyDispatchFailed, domain.OutcomeFailed)
		resp.Operation = proposal.Name
		return resp
	}

	if pending != nil {
		if err := o.clear(ctx, slots, pending.Operation); err != nil {
			o.logger.Error("Clearing pending state failed", "identity", identity, "error", err)
		}
	}

	text := result.Text
	if result.Empty {
		text = locale.Text(lang, locale.KeyEmptyResult)
	} else if outcome.Operation.Reformat && o.reformatter != nil {
		text = o.reformatter.Reformat(ctx, text, lang)
	}
	return TurnResponse{
		Text:      text,
		Outcome:   domain.OutcomeDispatched,
		Operation: proposal.Name,
		RequestID: result.ID,
	}
}

// Cancel drops the pending call of identity, if any.
func (o *Orchestrator) Cancel(ctx context.Context, identity string) error {
	return o.sessions.WithLock(ctx, identity, func(ctx context.Context, slots session.Slots) error {
		pending, err := slots.Pending(ctx)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}
		return o.clear(ctx, slots, pending.Operation)
	})
}

// Pending returns the pending call of identity, or domain.ErrNoPendingCall.
func (o *Orchestrator) Pending(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	return o.sessions.Load(ctx, identity)
}

func (o *Orchestrator) clear(ctx context.Context, slots session.Slots, operation string) error {
	if err := slots.Clear(ctx); err != nil {
		return err
	}
	o.slotEvent(ctx, slots.Identity(), domain.SlotCleared, operation, nil)
	return nil
}

func (o *Orchestrator) slotEvent(ctx context.Context, identity string, action domain.SlotAction, operation string, missing []string) {
	if o.hooks.OnSlot == nil {
		return
	}
	o.hooks.OnSlot(ctx, &domain.SlotEvent{
		EventBase: domain.EventBase{Timestamp: o.now(), Type: domain.EventSlot, Identity: identity},
		Action:    action,
		Operation: operation,
		Missing:   missing,
	})
}

// describeParam names a parameter for a generic clarification. Catalog
// descriptions are not written in English, so English gets the bare name.
func (o *Orchestrator) describeParam(op *schema.OperationSchema, lang domain.Language) func(string) string {
	return func(name string) string {
		if p, ok := op.Param(name); ok && lang != domain.English && p.Description != "" {
			return p.Description
		}
		return strings.ReplaceAll(name, "_", " ")
	}
}

func (o *Orchestrator) reply(lang domain.Language, key locale.Key, outcome domain.TurnOutcome) TurnResponse {
	return TurnResponse{Text: locale.Text(lang, key), Outcome: outcome}
}
