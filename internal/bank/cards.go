package bank

import (
	"context"
	"fmt"
	"strings"
)

func cardNotFound(name string) string {
	return fmt.Sprintf("%q аттуу карта табылган жок.", strings.TrimSpace(name))
}

func cardList(title string, cards []Card) string {
	if len(cards) == 0 {
		return title + "\n\nТалапка жооп берген карта табылган жок."
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, c := range cards {
		fmt.Fprintf(&b, "• %s\n", c.Name)
	}
	return b.String()
}

func (s *Service) cardArg(args map[string]any) (string, error) {
	var in struct {
		CardName string `mapstructure:"card_name"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	return in.CardName, nil
}

func (s *Service) listCards(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	for _, c := range s.products.Cards {
		fmt.Fprintf(&b, "Карта аты: %s\n", c.Name)
	}
	return b.String(), nil
}

func (s *Service) cardDetails(ctx context.Context, args map[string]any) (string, error) {
	name, err := s.cardArg(args)
	if err != nil {
		return "", err
	}
	c, ok := s.products.Card(name)
	if !ok {
		return cardNotFound(name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Name)
	fmt.Fprintf(&b, "Түрү: %s\n", c.Type)
	fmt.Fprintf(&b, "Төлөм системасы: %s\n", c.System)
	fmt.Fprintf(&b, "Валюта: %s\n", strings.Join(c.Currency, ", "))
	fmt.Fprintf(&b, "Жылдык акы: %s\n", c.AnnualFee)
	fmt.Fprintf(&b, "Мөөнөтү: %s\n", c.Validity)
	if len(c.Limits) > 0 {
		b.WriteString("Лимиттер:\n")
		writeLimits(&b, c)
	}
	if len(c.Benefits) > 0 {
		fmt.Fprintf(&b, "Артыкчылыктар: %s\n", strings.Join(c.Benefits, "; "))
	}
	fmt.Fprintf(&b, "Сүрөттөмө: %s\n", c.Descr)
	return b.String(), nil
}

func writeLimits(b *strings.Builder, c Card) {
	for _, k := range sortedKeys(c.Limits) {
		fmt.Fprintf(b, "  - %s: %s\n", k, c.Limits[k])
	}
}

type cardField struct {
	label string
	value func(Card) string
}

var cardFields = []cardField{
	{"Түрү", func(c Card) string { return c.Type }},
	{"Төлөм системасы", func(c Card) string { return c.System }},
	{"Валюта", func(c Card) string { return strings.Join(c.Currency, ", ") }},
	{"Жылдык акы", func(c Card) string { return c.AnnualFee }},
	{"Мөөнөтү", func(c Card) string { return c.Validity }},
	{"Артыкчылыктар", func(c Card) string { return strings.Join(c.Benefits, ", ") }},
}

func (s *Service) compareCards(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		CardNames []string `mapstructure:"card_names"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	cards := s.products.CardsNamed(in.CardNames)
	if len(cards) < 2 {
		return "Карта салыштыруу үчүн эң азы 2 карта керек.", nil
	}

	var b strings.Builder
	b.WriteString("Салыштырылган карталар:\n")
	for i, c := range cards {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Name)
	}

	var same, diff strings.Builder
	for _, f := range cardFields {
		first := f.value(cards[0])
		equal := true
		for _, c := range cards[1:] {
			if f.value(c) != first {
				equal = false
				break
			}
		}
		if equal {
			fmt.Fprintf(&same, "• %s: %s\n", f.label, first)
			continue
		}
		fmt.Fprintf(&diff, "• %s:\n", f.label)
		for _, c := range cards {
			fmt.Fprintf(&diff, "  - %s: %s\n", c.Name, f.value(c))
		}
	}
	b.WriteString("\nОкшоштуктары:\n")
	writeOrNone(&b, same.String())
	b.WriteString("Айырмачылыктары:\n")
	writeOrNone(&b, diff.String())
	return b.String(), nil
}

func writeOrNone(b *strings.Builder, s string) {
	if s == "" {
		b.WriteString("• Жок\n")
		return
	}
	b.WriteString(s)
}

func (s *Service) cardLimits(ctx context.Context, args map[string]any) (string, error) {
	name, err := s.cardArg(args)
	if err != nil {
		return "", err
	}
	c, ok := s.products.Card(name)
	if !ok {
		return cardNotFound(name), nil
	}
	if len(c.Limits) == 0 {
		return "Бул карта үчүн лимиттер табылган жок.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s картасынын лимиттери:\n", c.Name)
	writeLimits(&b, c)
	return b.String(), nil
}

func (s *Service) cardBenefits(ctx context.Context, args map[string]any) (string, error) {
	name, err := s.cardArg(args)
	if err != nil {
		return "", err
	}
	c, ok := s.products.Card(name)
	if !ok {
		return cardNotFound(name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s картасынын артыкчылыктары:\n", c.Name)
	for _, item := range c.Benefits {
		fmt.Fprintf(&b, "• %s\n", item)
	}
	for _, sec := range c.Instructions {
		for _, item := range sec.Items {
			fmt.Fprintf(&b, "• %s\n", item)
		}
	}
	if c.Descr != "" {
		fmt.Fprintf(&b, "• %s\n", c.Descr)
	}
	return b.String(), nil
}

func (s *Service) cardsByType(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		CardType string `mapstructure:"card_type"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	return cardList(fmt.Sprintf("%s карталары:", titleCase(in.CardType)), s.products.CardsByType(in.CardType)), nil
}

func (s *Service) cardsBySystem(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		System string `mapstructure:"system"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	return cardList(fmt.Sprintf("%s карталары:", titleCase(in.System)), s.products.CardsBySystem(in.System)), nil
}

func (s *Service) cardsByFee(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		MinFee string `mapstructure:"min_fee"`
		MaxFee string `mapstructure:"max_fee"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	lo, errLo := parseBound(in.MinFee)
	hi, errHi := parseBound(in.MaxFee)
	if errLo != nil || errHi != nil {
		return "Жылдык акынын чеги сан менен көрсөтүлүшү керек.", nil
	}
	cards := s.products.CardsByFee(lo, hi)
	if len(cards) == 0 {
		return "Талапка жооп берген карта табылган жок.", nil
	}
	var b strings.Builder
	b.WriteString("Карталар:\n\n")
	for _, c := range cards {
		fmt.Fprintf(&b, "• %s: %s\n", c.Name, c.AnnualFee)
	}
	return b.String(), nil
}

func (s *Service) cardsByCurrency(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Currency string `mapstructure:"currency"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	title := fmt.Sprintf("%s валютасын колдогон карталар:", strings.ToUpper(in.Currency))
	return cardList(title, s.products.CardsByCurrency(in.Currency)), nil
}

func writeSections(b *strings.Builder, sections []Section) {
	for _, sec := range sections {
		fmt.Fprintf(b, "%s:\n", sec.Title)
		for _, item := range sec.Items {
			fmt.Fprintf(b, "  • %s\n", item)
		}
	}
}

func (s *Service) cardInstructions(ctx context.Context, args map[string]any) (string, error) {
	name, err := s.cardArg(args)
	if err != nil {
		return "", err
	}
	c, ok := s.products.Card(name)
	if !ok {
		return cardNotFound(name), nil
	}
	if len(c.Instructions) == 0 {
		return fmt.Sprintf("%s картасы үчүн көрсөтмөлөр жок.", c.Name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s картасынын көрсөтмөлөрү:\n\n", c.Name)
	writeSections(&b, c.Instructions)
	return b.String(), nil
}

func (s *Service) cardConditions(ctx context.Context, args map[string]any) (string, error) {
	name, err := s.cardArg(args)
	if err != nil {
		return "", err
	}
	c, ok := s.products.Card(name)
	if !ok {
		return cardNotFound(name), nil
	}
	if len(c.Conditions) == 0 {
		return fmt.Sprintf("%s картасы үчүн шарттар жок.", c.Name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s картасынын шарттары:\n\n", c.Name)
	writeSections(&b, c.Conditions)
	return b.String(), nil
}

func (s *Service) cardsWithFeatures(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Features []string `mapstructure:"features"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	title := fmt.Sprintf("'%s' өзгөчөлүктөрү бар карталар:", strings.Join(in.Features, ", "))
	return cardList(title, s.products.CardsWithFeatures(in.Features)), nil
}

func (s *Service) cardRecommendations(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Criteria CardCriteria `mapstructure:"criteria"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	recs := s.products.RecommendCards(in.Criteria)
	if len(recs) == 0 {
		return "Критерийлерге ылайык карта табылган жок.", nil
	}
	var b strings.Builder
	b.WriteString("Карта сунуштары:\n\n")
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. %s (упай: %d)\n", i+1, r.Item.Name, r.Score)
		fmt.Fprintf(&b, "   Жылдык акы: %s\n", r.Item.AnnualFee)
		if r.Item.Descr != "" {
			fmt.Fprintf(&b, "   Сүрөттөмө: %s\n", shorten(r.Item.Descr, 100))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
