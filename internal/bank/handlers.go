// Package bank implements the demo banking operations served by the tool
// server: an in-memory ledger for account operations and an embedded product
// catalog for card, deposit and bank lookups. Replies are in Kyrgyz.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

const unknownName = "белгисиз"

const dateLayout = "2006-01-02"

var txTypeNames = map[TxType]string{
	TxDeposit:    "Толуктоо",
	TxWithdrawal: "Чыгым",
	TxTransfer:   "Которуу",
}

var accountTypeNames = map[string]string{
	"savings":  "Жинак",
	"checking": "Агымдагы",
}

// Service binds the ledger and product catalog to operation handlers.
type Service struct {
	ledger      *Ledger
	products    *Products
	identityKey string
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIdentityKey sets the argument carrying the caller id (default "user_id").
func WithIdentityKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.identityKey = key
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service.
func New(ledger *Ledger, products *Products, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		products:    products,
		identityKey: "user_id",
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDemo creates a Service over the demo ledger and the embedded catalog.
func NewDemo(opts ...Option) (*Service, error) {
	products, err := DefaultProducts()
	if err != nil {
		return nil, err
	}
	return New(DemoLedger(), products, opts...), nil
}

// Handlers returns every operation implementation keyed by operation name.
func (s *Service) Handlers() map[string]registry.ToolFunction {
	return map[string]registry.ToolFunction{
		// Accounts
		"get_balance":                    s.balance,
		"get_transactions":               s.transactions,
		"transfer_money":                 s.transfer,
		"get_last_incoming_transaction":  s.lastIncoming,
		"get_accounts_info":              s.accountsInfo,
		"get_incoming_sum_for_period":    s.periodSum(DirIn),
		"get_outgoing_sum_for_period":    s.periodSum(DirOut),
		"get_last_3_transfer_recipients": s.lastRecipients,
		"get_largest_transaction":        s.largest,

		// Cards
		"list_all_card_names":         s.listCards,
		"get_card_details":            s.cardDetails,
		"compare_cards":               s.compareCards,
		"get_card_limits":             s.cardLimits,
		"get_card_benefits":           s.cardBenefits,
		"get_cards_by_type":           s.cardsByType,
		"get_cards_by_payment_system": s.cardsBySystem,
		"get_cards_by_fee_range":      s.cardsByFee,
		"get_cards_by_currency":       s.cardsByCurrency,
		"get_card_instructions":       s.cardInstructions,
		"get_card_conditions":         s.cardConditions,
		"get_cards_with_features":     s.cardsWithFeatures,
		"get_card_recommendations":    s.cardRecommendations,

		// About us
		"get_bank_info":         s.bankInfo,
		"get_bank_mission":      s.bankMission,
		"get_bank_values":       s.bankValues,
		"get_ownership_info":    s.ownership,
		"get_branch_network":    s.branches,
		"get_contact_info":      s.contact,
		"get_complete_about_us": s.completeAbout,
		"get_about_us_section":  s.aboutSection,

		// Deposits
		"list_all_deposit_names":           s.listDeposits,
		"get_deposit_details":              s.depositDetails,
		"compare_deposits":                 s.compareDeposits,
		"get_deposits_by_currency":         s.depositsByCurrency,
		"get_deposits_by_term_range":       s.depositsByTerm,
		"get_deposits_by_min_amount":       s.depositsByMinAmount,
		"get_deposits_by_rate_range":       s.depositsByRate,
		"get_deposits_with_replenishment":  s.depositsWithReplenishment,
		"get_deposits_with_capitalization": s.depositsWithCapitalization,
		"get_deposits_by_withdrawal_type":  s.depositsByWithdrawal,
		"get_deposit_recommendations":      s.depositRecommendations,
		"get_government_securities":        s.securities,
		"get_child_deposits":               s.childDeposits,
		"get_online_deposits":              s.onlineDeposits,
	}
}

// Register adds every handler to reg.
func (s *Service) Register(reg *registry.Registry) {
	for name, fn := range s.Handlers() {
		reg.Register(name, fn)
	}
}

// decode maps loosely typed call arguments onto a struct.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Service) identity(args map[string]any) (int64, error) {
	raw, ok := args[s.identityKey]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing %s", s.identityKey)
	}
	var id int64
	if err := mapstructure.WeakDecode(raw, &id); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", s.identityKey, err)
	}
	return id, nil
}

// ledgerReply turns ledger failures into the user-facing message. Unknown
// errors are returned as errors.
func ledgerReply(err error) (string, error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return "Колдонуучу табылган жок.", nil
	case errors.Is(err, ErrNoAccounts):
		return "Сиздин банк эсебиңиз табылган жок.", nil
	}
	return "", err
}

func localTime(t time.Time) string {
	return t.In(Bishkek).Format("2006-01-02 15:04")
}

// amountLine renders "500.00 сом -> Айзада", dropping the arrow when the
// transaction has no counterparty.
func amountLine(e Entry) string {
	line := fmt.Sprintf("%.2f сом", e.Amount.Float())
	switch {
	case e.Counterparty == "":
		return line
	case e.Direction == DirOut:
		return line + " -> " + e.Counterparty
	default:
		return line + " <- " + e.Counterparty
	}
}

func (s *Service) balance(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	total, err := s.ledger.Balance(uid)
	if err != nil {
		return ledgerReply(err)
	}
	return fmt.Sprintf("Сиздин бардык эсептериңиздеги жалпы сумма: %.2f сом.", total.Float()), nil
}

func (s *Service) transactions(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	var in struct {
		Limit int `mapstructure:"limit"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	if in.Limit <= 0 {
		in.Limit = 5
	}
	entries, err := s.ledger.History(uid, in.Limit)
	if err != nil {
		return ledgerReply(err)
	}
	if len(entries) == 0 {
		return "Акыркы транзакциялар табылган жок.", nil
	}
	var b strings.Builder
	b.WriteString("Акыркы транзакциялар:\n")
	for _, e := range entries {
		name := txTypeNames[e.Type]
		if name == "" {
			name = string(e.Type)
		}
		fmt.Fprintf(&b, "- %s: %s, %s\n", name, amountLine(e), localTime(e.Timestamp))
	}
	return b.String(), nil
}

func (s *Service) transfer(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	var in struct {
		ToName string  `mapstructure:"to_name"`
		Amount float64 `mapstructure:"amount"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	tx, recipient, err := s.ledger.Transfer(uid, in.ToName, Som(in.Amount))
	switch {
	case errors.Is(err, ErrRecipientNotFound):
		return fmt.Sprintf("%s аттуу колдонуучу табылган жок.", strings.TrimSpace(in.ToName)), nil
	case errors.Is(err, ErrAmountRequired):
		return "Акча которуу суммасын көрсөтүңүз.", nil
	case errors.Is(err, ErrSelfTransfer):
		return "Сиз өзүңүзгө которо албайсыз.", nil
	case errors.Is(err, ErrInsufficientFunds):
		return "Сиздин эсебиңизде жетиштүү каражат жок.", nil
	case errors.Is(err, ErrNoAccounts):
		return "Эсептер табылган жок.", nil
	case err != nil:
		return ledgerReply(err)
	}
	s.logger.Info("Transfer completed", "tx_id", tx.ID, "from_user", uid, "to_user", recipient.ID)
	return fmt.Sprintf("%.2f сом %s аттуу адамга ийгиликтүү которулду!", tx.Amount.Float(), recipient.Name), nil
}

func (s *Service) lastIncoming(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	e, ok, err := s.ledger.LastIncoming(uid)
	if err != nil {
		return ledgerReply(err)
	}
	if !ok {
		return "Сизге акыркы убакта акча которулган эмес.", nil
	}
	sender := e.Counterparty
	if sender == "" {
		sender = unknownName
	}
	return fmt.Sprintf("Сизге акыркы акчаны %s %.2f сом которгон (%s).", sender, e.Amount.Float(), localTime(e.Timestamp)), nil
}

func (s *Service) accountsInfo(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	accounts, err := s.ledger.Accounts(uid)
	if err != nil {
		return ledgerReply(err)
	}
	var b strings.Builder
	b.WriteString("Сиздин эсептериңиз:\n")
	for _, a := range accounts {
		name := accountTypeNames[a.Type]
		if name == "" {
			name = a.Type
		}
		fmt.Fprintf(&b, "- %s: %.2f сом\n", name, a.Balance.Float())
	}
	return b.String(), nil
}

// periodSum reports the total for [start_date, end_date], both days inclusive.
func (s *Service) periodSum(dir Direction) registry.ToolFunction {
	label := "кирген"
	if dir == DirOut {
		label = "чыккан"
	}
	return func(ctx context.Context, args map[string]any) (string, error) {
		uid, err := s.identity(args)
		if err != nil {
			return "", err
		}
		var in struct {
			StartDate string `mapstructure:"start_date"`
			EndDate   string `mapstructure:"end_date"`
		}
		if err := decode(args, &in); err != nil {
			return "", err
		}
		from, errFrom := time.ParseInLocation(dateLayout, strings.TrimSpace(in.StartDate), Bishkek)
		to, errTo := time.ParseInLocation(dateLayout, strings.TrimSpace(in.EndDate), Bishkek)
		if errFrom != nil || errTo != nil {
			return "Датанын форматы туура эмес. YYYY-MM-DD форматын колдонуңуз.", nil
		}
		total, err := s.ledger.SumForPeriod(uid, dir, from, to.AddDate(0, 0, 1))
		if err != nil {
			return ledgerReply(err)
		}
		return fmt.Sprintf("%s - %s аралыгында %s которуулар: %.2f сом.", in.StartDate, in.EndDate, label, total.Float()), nil
	}
}

func (s *Service) lastRecipients(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	names, err := s.ledger.RecentRecipients(uid, 3)
	if err != nil {
		return ledgerReply(err)
	}
	if len(names) == 0 {
		return "Акыркы алуучулар табылган жок.", nil
	}
	var b strings.Builder
	b.WriteString("Акыркы 3 алуучу:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String(), nil
}

func (s *Service) largest(ctx context.Context, args map[string]any) (string, error) {
	uid, err := s.identity(args)
	if err != nil {
		return "", err
	}
	e, ok, err := s.ledger.Largest(uid)
	if err != nil {
		return ledgerReply(err)
	}
	if !ok {
		return "Транзакциялар табылган жок.", nil
	}
	return fmt.Sprintf("Эң чоң транзакция: %s, %s", amountLine(e), localTime(e.Timestamp)), nil
}

// parseBound reads an optional numeric filter such as "1 000 сом" or "12.5%".
func parseBound(raw string) (*float64, error) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			digits.WriteRune(r)
		case r == ',':
			digits.WriteRune('.')
		}
	}
	if digits.Len() == 0 {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	return &v, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
