package bank

import (
	"context"
	"fmt"
	"strings"
)

func (s *Service) bankInfo(ctx context.Context, args map[string]any) (string, error) {
	a := s.products.About
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.BankName)
	fmt.Fprintf(&b, "Негизделген: %s\n", a.Founded)
	fmt.Fprintf(&b, "Лицензия: %s\n", a.License)
	fmt.Fprintf(&b, "Сүрөттөмө: %s\n", a.Descr)
	return b.String(), nil
}

func (s *Service) bankMission(ctx context.Context, args map[string]any) (string, error) {
	return "Банктын миссиясы:\n\n" + s.products.About.Mission, nil
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

func (s *Service) bankValues(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Банктын баалуулуктары:\n\n")
	writeNumbered(&b, s.products.About.Values)
	return b.String(), nil
}

func orUnknown(v string) string {
	if v == "" {
		return unknownName
	}
	return v
}

func writeOwnership(b *strings.Builder, o Ownership) {
	fmt.Fprintf(b, "Негизги акционер: %s\n", orUnknown(o.MainShareholder))
	fmt.Fprintf(b, "Өлкө: %s\n", orUnknown(o.Country))
	fmt.Fprintf(b, "Ээлик пайы: %s\n", orUnknown(o.OwnershipPercentage))
}

func writeBranches(b *strings.Builder, br Branches) {
	fmt.Fprintf(b, "Башкы кеңсе: %s\n", orUnknown(br.HeadOffice))
	if len(br.Regions) > 0 {
		b.WriteString("Аймактык филиалдар:\n")
		writeNumbered(b, br.Regions)
	}
}

func writeContact(b *strings.Builder, c Contact) {
	fmt.Fprintf(b, "Телефон: %s\n", orUnknown(c.Phone))
	fmt.Fprintf(b, "Электрондук почта: %s\n", orUnknown(c.Email))
	fmt.Fprintf(b, "Дарек: %s\n", orUnknown(c.Address))
}

func (s *Service) ownership(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Ээлик маалыматтары:\n\n")
	writeOwnership(&b, s.products.About.Ownership)
	return b.String(), nil
}

func (s *Service) branches(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Филиалдар тармагы:\n\n")
	writeBranches(&b, s.products.About.Branches)
	return b.String(), nil
}

func (s *Service) contact(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString("Байланыш маалыматтары:\n\n")
	writeContact(&b, s.products.About.Contact)
	return b.String(), nil
}

func (s *Service) completeAbout(ctx context.Context, args map[string]any) (string, error) {
	a := s.products.About
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.BankName)
	fmt.Fprintf(&b, "Миссия:\n%s\n\n", a.Mission)
	b.WriteString("Баалуулуктар:\n")
	writeNumbered(&b, a.Values)
	b.WriteString("\nЭэлик:\n")
	writeOwnership(&b, a.Ownership)
	b.WriteString("\nФилиалдар:\n")
	writeBranches(&b, a.Branches)
	b.WriteString("\nБайланыш:\n")
	writeContact(&b, a.Contact)
	return b.String(), nil
}

func (s *Service) aboutSection(ctx context.Context, args map[string]any) (string, error) {
	var in struct {
		Section string `mapstructure:"section"`
	}
	if err := decode(args, &in); err != nil {
		return "", err
	}
	a := s.products.About
	var b strings.Builder
	section := strings.ToLower(strings.TrimSpace(in.Section))
	fmt.Fprintf(&b, "%s:\n\n", titleCase(strings.ReplaceAll(section, "_", " ")))
	switch section {
	case "bank_name":
		b.WriteString(a.BankName)
	case "founded":
		b.WriteString(a.Founded)
	case "license":
		b.WriteString(a.License)
	case "mission":
		b.WriteString(a.Mission)
	case "descr":
		b.WriteString(a.Descr)
	case "values":
		writeNumbered(&b, a.Values)
	case "ownership":
		writeOwnership(&b, a.Ownership)
	case "branches":
		writeBranches(&b, a.Branches)
	case "contact":
		writeContact(&b, a.Contact)
	default:
		return fmt.Sprintf("%q бөлүмү табылган жок.", in.Section), nil
	}
	return b.String(), nil
}
