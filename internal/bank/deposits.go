package bank

import (
	"context"
	"fmt"
	"strings"
)

func depositNotFound(name string) string {
	return fmt.Sprintf("%q аттуу депозит табылган жок.", strings.TrimSpace(name))
}

func yesNo(v bool) string {
	if v {
		return "ооба"
	}
	return "жок"
}

// depositLine is one indented detail line of a deposit list.
type depositLine func(Deposit) string

func lineRate(d Deposit) string     { return "Пайыздык ставка: " + orUnknown(d.Rate) }
func lineTerm(d Deposit) string     { return "Мөөнөт: " + orUnknown(d.Term) }
func lineMin(d Deposit) string      { return "Минималдык сумма: " + orUnknown(d.MinAmount) }
func lineWithdraw(d Deposit) string { return "Чыгаруу: " + orUnknown(d.Withdrawal) }

func depositList(title string, deposits []Deposit, lines ...depositLine) string {
	if len(deposits) == 0 {
		return title + "\n\nТалапка жооп берген депозит табылган жок."
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for i, d := range deposits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d.Name)
		for _, line := range lines {
			fmt.Fprintf(&b, "   %s\n", line(d))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Service) listDeposits(ctx context.Context, args map[string]any) (string, error) {
	return depositList("Бардык депозиттер:", s.products.Deposits), nil
}

func (s *Service) depositDetails(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		DepositName string `mapstructure:"deposit_name"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	d, ok := s.products.Deposit(in.DepositName)
	if !ok {
		return depositNotFound(in.DepositName), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", d.Name)
	fmt.Fprintf(&b, "Валюта: %s\n", strings.Join(d.Currency, ", "))
	fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n", lineMin(d), lineTerm(d), lineRate(d), lineWithdraw(d))
	fmt.Fprintf(&b, "Толуктоо: %s\n", yesNo(d.Replenishment))
	fmt.Fprintf(&b, "Капитализация: %s\n", yesNo(d.Capitalization))
	fmt.Fprintf(&b, "Сүрөттөмө: %s\n", orUnknown(d.Descr))
	return b.String(), nil
}

type depositField struct {
	label string
	value func(Deposit) string
}

var depositFields = []depositField{
	{"Валюта", func(d Deposit) string { return strings.Join(d.Currency, ", ") }},
	{"Минималдык сумма", func(d Deposit) string { return d.MinAmount }},
	{"Мөөнөт", func(d Deposit) string { return d.Term }},
	{"Пайыздык ставка", func(d Deposit) string { return d.Rate }},
	{"Чыгаруу", func(d Deposit) string { return d.Withdrawal }},
	{"Толуктоо", func(d Deposit) string { return yesNo(d.Replenishment) }},
	{"Капитализация", func(d Deposit) string { return yesNo(d.Capitalization) }},
}

func (s *Service) compareDeposits(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		DepositNames []string `mapstructure:"deposit_names"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	deposits := s.products.DepositsNamed(in.DepositNames)
	if len(deposits) < 2 {
		return "Депозит салыштыруу үчүн эң азы 2 депозит керек.", nil
	}
	var b strings.Builder
	b.WriteString("Салыштырылган депозиттер:\n")
	for i, d := range deposits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d.Name)
	}
	b.WriteString("\n")
	for _, f := range depositFields {
		first := f.value(deposits[0])
		equal := true
		for _, d := range deposits[1:] {
			if f.value(d) != first {
				equal = false
				break
			}
		}
		if equal {
			fmt.Fprintf(&b, "%s: бардыгы бирдей (%s)\n", f.label, first)
			continue
		}
		fmt.Fprintf(&b, "%s:\n", f.label)
		for i, d := range deposits {
			fmt.Fprintf(&b, "  %d. %s: %s\n", i+1, d.Name, f.value(d))
		}
	}
	return b.String(), nil
}

func (s *Service) depositsByCurrency(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Currency string `mapstructure:"currency"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	title := fmt.Sprintf("%s валютасындагы депозиттер:", strings.ToUpper(in.Currency))
	return depositList(title, s.products.DepositsByCurrency(in.Currency), lineRate, lineMin, lineTerm), nil
}

func (s *Service) depositsByTerm(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		MinTerm string `mapstructure:"min_term"`
		MaxTerm string `mapstructure:"max_term"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	lo, errLo := parseBound(in.MinTerm)
	hi, errHi := parseBound(in.MaxTerm)
	if errLo != nil || errHi != nil {
		return "Мөөнөт айлар менен көрсөтүлүшү керек.", nil
	}
	return depositList("Мөөнөт боюнча депозиттер:", s.products.DepositsByTerm(lo, hi), lineTerm, lineRate), nil
}

func (s *Service) depositsByMinAmount(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		MaxAmount string `mapstructure:"max_amount"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	limit, err := parseBound(in.MaxAmount)
	if err != nil || limit == nil {
		return "Сумма сан менен көрсөтүлүшү керек.", nil
	}
	title := fmt.Sprintf("%s чейинки минималдык суммадагы депозиттер:", in.MaxAmount)
	return depositList(title, s.products.DepositsAffordable(*limit), lineMin, lineRate), nil
}

func (s *Service) depositsByRate(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		MinRate string `mapstructure:"min_rate"`
		MaxRate string `mapstructure:"max_rate"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	lo, errLo := parseBound(in.MinRate)
	hi, errHi := parseBound(in.MaxRate)
	if errLo != nil || errHi != nil {
		return "Пайыздык ставка сан менен көрсөтүлүшү керек.", nil
	}
	return depositList("Пайыздык ставка боюнча депозиттер:", s.products.DepositsByRate(lo, hi), lineRate, lineTerm), nil
}

func (s *Service) depositsWithReplenishment(ctx context.Context, args map[string]any) (string, error) {
	return depositList("Толуктоого мүмкүндүк берген депозиттер:", s.products.DepositsWithReplenishment(), lineRate, lineTerm), nil
}

func (s *Service) depositsWithCapitalization(ctx context.Context, args map[string]any) (string, error) {
	return depositList("Капитализация мүмкүндүгүн берген депозиттер:", s.products.DepositsWithCapitalization(), lineRate, lineTerm), nil
}

func (s *Service) depositsByWithdrawal(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		WithdrawalType string `mapstructure:"withdrawal_type"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	title := fmt.Sprintf("%s чыгаруу түрүндөгү депозиттер:", in.WithdrawalType)
	return depositList(title, s.products.DepositsByWithdrawal(in.WithdrawalType), lineWithdraw, lineRate), nil
}

func (s *Service) depositRecommendations(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Criteria DepositCriteria `mapstructure:"criteria"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	recs := s.products.RecommendDeposits(in.Criteria)
	if len(recs) == 0 {
		return "Критерийлерге ылайык депозит табылган жок.", nil
	}
	var b strings.Builder
	b.WriteString("Депозит сунуштары:\n\n")
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Item.Name)
		fmt.Fprintf(&b, "   %s\n   %s\n   %s\n", lineRate(r.Item), lineTerm(r.Item), lineMin(r.Item))
		fmt.Fprintf(&b, "   Сунуштук балл: %d\n\n", r.Score)
	}
	return b.String(), nil
}

func (s *Service) securities(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Мамлекеттик баалуу кагаздар:\n\n")
	for i, sec := range s.products.Securities {
		fmt.Fprintf(&b, "%d. %s\n", i+1, sec.Name)
		fmt.Fprintf(&b, "   Мөөнөт: %s\n", orUnknown(sec.Term))
		fmt.Fprintf(&b, "   Номиналдык сумма: %s\n", orUnknown(sec.NominalAmount))
		fmt.Fprintf(&b, "   Түрү: %s\n", orUnknown(sec.Type))
		fmt.Fprintf(&b, "   Чыгаруучу: %s\n\n", orUnknown(sec.Issuer))
	}
	return b.String(), nil
}

func (s *Service) childDeposits(ctx context.Context, args map[string]any) (string, error) {
	return depositList("Балдар үчүн депозиттер:", s.products.ChildDeposits(), lineRate, lineTerm, lineMin), nil
}

func (s *Service) onlineDeposits(ctx context.Context, args map[string]any) (string, error) {
	return depositList("Онлайн депозиттер:", s.products.OnlineDeposits(), lineRate, lineTerm, lineMin), nil
}
