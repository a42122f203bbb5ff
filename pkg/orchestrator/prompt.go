package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/locale"
	"github.com/aretw0/teller/pkg/schema"
)

const baseInstruction = `You are a banking assistant. Answer in %s.
Address the customer by name (%s) in a warm, friendly way, e.g. "Yes, %s, your balance is 1000 som".
The customer profile below is authoritative: answer questions about the customer's name and account types from it.
For balances, transactions, transfers and bank products always call an operation, even when the history already contains an answer.
Call at most one operation per message.`

const markerInstruction = `To call an operation, reply with exactly one marker of the form
[FUNC_CALL:name=<operation>, key=value, key2='quoted value']
Examples:
"Канча акча бар?" -> [FUNC_CALL:name=get_balance]
"Акыркы транзакцияларымды көрсөт" -> [FUNC_CALL:name=get_transactions, limit=5]
"1000 сомду Бакытка котор" -> [FUNC_CALL:name=transfer_money, amount=1000, to_name='Бакыт']
Available operations and their parameters:
%s
%s is added automatically; never include it.`

// promptBuilder assembles the model input for one turn.
type promptBuilder struct {
	registry     *schema.Registry
	identityKey  string
	historyTurns int
	toolCalling  bool
}

func (b promptBuilder) build(req TurnRequest, message string, lang domain.Language, pending *domain.PendingSlotState) domain.ModelRequest {
	name := req.Profile.Name
	if name == "" {
		name = locale.Text(lang, locale.KeyDefaultName)
	}

	system := fmt.Sprintf(baseInstruction, locale.LanguageName(lang), name, name)
	if !b.toolCalling {
		system += "\n\n" + fmt.Sprintf(markerInstruction, b.operationDocs(), b.identityKey)
	}

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleSystem, Content: profileBlock(req.Profile, name)},
	}
	if pending != nil {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: pendingHint(pending)})
	}

	history := req.History
	if b.historyTurns >= 0 && len(history) > b.historyTurns {
		history = history[len(history)-b.historyTurns:]
	}
	for _, turn := range history {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleUser, Content: turn.Message},
			domain.Message{Role: domain.RoleAssistant, Content: turn.Response},
		)
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: message})

	out := domain.ModelRequest{Messages: msgs}
	if b.toolCalling {
		out.Tools = b.registry.ToolSpecs()
	}
	return out
}

// operationDocs lists one operation per line as "name: a, b".
func (b promptBuilder) operationDocs() string {
	var sb strings.Builder
	for i, op := range b.registry.List() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		params := op.ParamNames()
		list := "no parameters"
		if len(params) > 0 {
			list = strings.Join(params, ", ")
		}
		fmt.Fprintf(&sb, "%s: %s", op.Name, list)
	}
	return sb.String()
}

func profileBlock(p domain.Profile, name string) string {
	accounts := "none"
	if len(p.Accounts) > 0 {
		accounts = strings.Join(p.Accounts, ", ")
	}
	return fmt.Sprintf("Customer profile:\n- Name: %s\n- ID: %d\n- Accounts: %s", name, p.ID, accounts)
}

// pendingHint tells the model which operation is waiting for input, so a
// follow-up that only supplies the missing values is proposed as that same
// operation.
func pendingHint(p *domain.PendingSlotState) string {
	keys := make([]string, 0, len(p.Arguments))
	for k := range p.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	given := make([]string, len(keys))
	for i, k := range keys {
		given[i] = fmt.Sprintf("%s=%v", k, p.Arguments[k])
	}
	if len(given) == 0 {
		given = []string{"nothing yet"}
	}
	return fmt.Sprintf(
		"The customer started %s and has not finished it. Already provided: %s. Still needed: %s. "+
			"If the message supplies any of these, call %s with the new values.",
		p.Operation, strings.Join(given, ", "), strings.Join(p.Missing, ", "), p.Operation,
	)
}
