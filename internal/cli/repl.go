package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/teller/internal/presentation/tui"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/locale"
	"github.com/aretw0/teller/pkg/orchestrator"
)

// ChatService is the part of the orchestrator the chat loop talks to.
type ChatService interface {
	Handle(ctx context.Context, req orchestrator.TurnRequest) orchestrator.TurnResponse
	Cancel(ctx context.Context, identity string) error
	Pending(ctx context.Context, identity string) (*domain.PendingSlotState, error)
}

// Chat is an interactive terminal conversation for one profile.
type Chat struct {
	svc     ChatService
	profile domain.Profile
	lang    domain.Language
	keep    int
	history []domain.Turn

	in     io.Reader
	out    io.Writer
	render func(string) string
	styles tui.Styles
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithLanguage sets the reply language. Empty uses the service default.
func WithLanguage(lang domain.Language) ChatOption {
	return func(c *Chat) { c.lang = lang }
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) ChatOption {
	return func(c *Chat) { c.in, c.out = in, out }
}

// WithRenderer sets how replies are rendered, e.g. tui.NewRenderer.
func WithRenderer(render func(string) string) ChatOption {
	return func(c *Chat) {
		if render != nil {
			c.render = render
		}
	}
}

// WithStyles sets the prompt colors.
func WithStyles(s tui.Styles) ChatOption {
	return func(c *Chat) { c.styles = s }
}

// WithHistory sets how many past exchanges are sent along with each message.
func WithHistory(n int) ChatOption {
	return func(c *Chat) { c.keep = n }
}

// NewChat creates a chat loop over svc.
func NewChat(svc ChatService, profile domain.Profile, opts ...ChatOption) *Chat {
	c := &Chat{
		svc:     svc,
		profile: profile,
		keep:    orchestrator.DefaultHistoryTurns,
		in:      os.Stdin,
		out:     os.Stdout,
		render:  func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const chatHelp = `Commands:
  /pending      show the operation waiting for arguments
  /cancel       drop the waiting operation
  /lang <code>  switch reply language (ky, ru, en)
  /exit         leave`

// Run reads messages line by line until EOF, /exit or ctx is cancelled.
func (c *Chat) Run(ctx context.Context) error {
	c.system("Signed in as %s (id %d). Type /help for commands.", c.profileName(), c.profile.ID)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, c.styles.Prompt("> "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := c.command(ctx, line); done {
				return nil
			}
			continue
		}

		resp := c.svc.Handle(ctx, orchestrator.TurnRequest{
			Profile:  c.profile,
			Message:  line,
			History:  c.history,
			Language: c.lang,
		})
		reply := c.render(resp.Text)
		if !strings.HasSuffix(reply, "\n") {
			reply += "\n"
		}
		fmt.Fprint(c.out, reply)
		c.remember(line, resp.Text)
	}
}

func (c *Chat) command(ctx context.Context, line string) (exit bool) {
	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "/exit", "/quit":
		c.system("Bye.")
		return true
	case "/help":
		fmt.Fprintln(c.out, c.styles.System(chatHelp))
	case "/cancel":
		if _, err := c.svc.Pending(ctx, c.profile.Identity()); errors.Is(err, domain.ErrNoPendingCall) {
			c.system("Nothing to cancel.")
			return false
		}
		if err := c.svc.Cancel(ctx, c.profile.Identity()); err != nil {
			c.failure(err)
			return false
		}
		c.system("Pending operation dropped.")
	case "/pending":
		state, err := c.svc.Pending(ctx, c.profile.Identity())
		switch {
		case errors.Is(err, domain.ErrNoPendingCall):
			c.system("Nothing is waiting.")
		case err != nil:
			c.failure(err)
		default:
			c.system("%s is waiting for: %s", state.Operation, strings.Join(state.Missing, ", "))
		}
	case "/lang":
		lang := domain.ParseLanguage(strings.TrimSpace(arg), "")
		if lang == "" {
			c.system("Unknown language %q, use %s.", strings.TrimSpace(arg), languageList())
			return false
		}
		c.lang = lang
		c.system("Replies will be in %s.", lang)
	default:
		c.system("Unknown command %s. Type /help.", name)
	}
	return false
}

func languageList() string {
	codes := make([]string, 0, 3)
	for _, l := range locale.Languages() {
		codes = append(codes, string(l))
	}
	return strings.Join(codes, ", ")
}

func (c *Chat) remember(msg, reply string) {
	if c.keep <= 0 {
		return
	}
	c.history = append(c.history, domain.Turn{Message: msg, Response: reply})
	if len(c.history) > c.keep {
		c.history = c.history[len(c.history)-c.keep:]
	}
}

func (c *Chat) profileName() string {
	if c.profile.Name == "" {
		return "guest"
	}
	return c.profile.Name
}

func (c *Chat) system(format string, args ...any) {
	fmt.Fprintln(c.out, c.styles.System(">>> "+fmt.Sprintf(format, args...)))
}

func (c *Chat) failure(err error) {
	fmt.Fprintln(c.out, c.styles.Error("!!! "+err.Error()))
}
