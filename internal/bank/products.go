package bank

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/products.yaml
var productsYAML []byte

// Section is a titled list, used for card instructions and conditions.
type Section struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

type Card struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	System       string            `yaml:"system"`
	Currency     []string          `yaml:"currency"`
	AnnualFee    string            `yaml:"annual_fee"`
	Fee          float64           `yaml:"fee"`
	Validity     string            `yaml:"validity"`
	Limits       map[string]string `yaml:"limits"`
	Benefits     []string          `yaml:"benefits"`
	Features     []string          `yaml:"features"`
	Instructions []Section         `yaml:"instructions"`
	Conditions   []Section         `yaml:"conditions"`
	Descr        string            `yaml:"descr"`
}

type Deposit struct {
	Name           string   `yaml:"name"`
	Currency       []string `yaml:"currency"`
	MinAmount      string   `yaml:"min_amount"`
	MinAmountValue float64  `yaml:"min_amount_value"`
	Term           string   `yaml:"term"`
	TermMin        int      `yaml:"term_min"`
	TermMax        int      `yaml:"term_max"`
	Rate           string   `yaml:"rate"`
	RateMin        float64  `yaml:"rate_min"`
	RateMax        float64  `yaml:"rate_max"`
	Withdrawal     string   `yaml:"withdrawal"`
	Replenishment  bool     `yaml:"replenishment"`
	Capitalization bool     `yaml:"capitalization"`
	Child          bool     `yaml:"child"`
	Online         bool     `yaml:"online"`
	Descr          string   `yaml:"descr"`
}

type Security struct {
	Name          string `yaml:"name"`
	Term          string `yaml:"term"`
	NominalAmount string `yaml:"nominal_amount"`
	Type          string `yaml:"type"`
	Issuer        string `yaml:"issuer"`
}

type Ownership struct {
	MainShareholder     string `yaml:"main_shareholder"`
	Country             string `yaml:"country"`
	OwnershipPercentage string `yaml:"ownership_percentage"`
}

type Branches struct {
	HeadOffice string   `yaml:"head_office"`
	Regions    []string `yaml:"regions"`
}

type Contact struct {
	Phone   string `yaml:"phone"`
	Email   string `yaml:"email"`
	Address string `yaml:"address"`
}

type About struct {
	BankName  string    `yaml:"bank_name"`
	Founded   string    `yaml:"founded"`
	License   string    `yaml:"license"`
	Descr     string    `yaml:"descr"`
	Mission   string    `yaml:"mission"`
	Values    []string  `yaml:"values"`
	Ownership Ownership `yaml:"ownership"`
	Branches  Branches  `yaml:"branches"`
	Contact   Contact   `yaml:"contact"`
}

// Products is the read-only product catalog: cards, deposits, securities and
// the bank's own profile.
type Products struct {
	About      About      `yaml:"about"`
	Cards      []Card     `yaml:"cards"`
	Deposits   []Deposit  `yaml:"deposits"`
	Securities []Security `yaml:"securities"`
}

// LoadProducts parses a product catalog document.
func LoadProducts(data []byte) (*Products, error) {
	var p Products
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse product catalog: %w", err)
	}
	return &p, nil
}

// DefaultProducts returns the embedded demo catalog.
func DefaultProducts() (*Products, error) {
	return LoadProducts(productsYAML)
}

// Card finds a card by name, case-insensitively.
func (p *Products) Card(name string) (Card, bool) {
	for _, c := range p.Cards {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Card{}, false
}

// CardsNamed returns the cards matching names, in catalog order.
func (p *Products) CardsNamed(names []string) []Card {
	want := lowerSet(names)
	var out []Card
	for _, c := range p.Cards {
		if _, ok := want[strings.ToLower(c.Name)]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *Products) filterCards(keep func(Card) bool) []Card {
	var out []Card
	for _, c := range p.Cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (p *Products) CardsByType(cardType string) []Card {
	return p.filterCards(func(c Card) bool { return strings.EqualFold(c.Type, cardType) })
}

func (p *Products) CardsBySystem(system string) []Card {
	return p.filterCards(func(c Card) bool { return strings.EqualFold(c.System, system) })
}

func (p *Products) CardsByCurrency(currency string) []Card {
	return p.filterCards(func(c Card) bool { return containsFold(c.Currency, currency) })
}

// CardsByFee returns cards whose annual fee lies in [lo, hi]. A nil bound is open.
func (p *Products) CardsByFee(lo, hi *float64) []Card {
	return p.filterCards(func(c Card) bool { return inRange(c.Fee, lo, hi) })
}

// CardsWithFeatures returns cards having every listed feature. Matching is
// by substring so "cashback" matches "cashback 2%".
func (p *Products) CardsWithFeatures(features []string) []Card {
	return p.filterCards(func(c Card) bool {
		for _, f := range features {
			if !hasFeature(c, f) {
				return false
			}
		}
		return true
	})
}

// CardCriteria selects card recommendations.
type CardCriteria struct {
	Type     string   `mapstructure:"type"`
	MaxFee   *float64 `mapstructure:"max_fee"`
	Currency string   `mapstructure:"currency"`
	Features []string `mapstructure:"features"`
}

// Scored pairs a product with its recommendation score.
type Scored[T any] struct {
	Item  T
	Score int
}

// RecommendCards scores every card against the criteria and returns the
// matching ones, best first. Type, fee and currency are hard filters;
// each matched feature adds to the score.
func (p *Products) RecommendCards(c CardCriteria) []Scored[Card] {
	var out []Scored[Card]
	for _, card := range p.Cards {
		score := 0
		if c.Type != "" {
			if !strings.EqualFold(card.Type, c.Type) {
				continue
			}
			score += 2
		}
		if c.MaxFee != nil {
			if card.Fee > *c.MaxFee {
				continue
			}
			score++
		}
		if c.Currency != "" {
			if !containsFold(card.Currency, c.Currency) {
				continue
			}
			score++
		}
		for _, f := range c.Features {
			if hasFeature(card, f) {
				score += 2
			}
		}
		out = append(out, Scored[Card]{Item: card, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (p *Products) Deposit(name string) (Deposit, bool) {
	for _, d := range p.Deposits {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, true
		}
	}
	return Deposit{}, false
}

func (p *Products) DepositsNamed(names []string) []Deposit {
	want := lowerSet(names)
	var out []Deposit
	for _, d := range p.Deposits {
		if _, ok := want[strings.ToLower(d.Name)]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *Products) filterDeposits(keep func(Deposit) bool) []Deposit {
	var out []Deposit
	for _, d := range p.Deposits {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (p *Products) DepositsByCurrency(currency string) []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return containsFold(d.Currency, currency) })
}

// DepositsByTerm returns deposits whose term range overlaps [lo, hi] months.
func (p *Products) DepositsByTerm(lo, hi *float64) []Deposit {
	return p.filterDeposits(func(d Deposit) bool {
		if lo != nil && float64(d.TermMax) < *lo {
			return false
		}
		if hi != nil && float64(d.TermMin) > *hi {
			return false
		}
		return true
	})
}

// DepositsAffordable returns deposits whose minimum amount is at most maxAmount.
func (p *Products) DepositsAffordable(maxAmount float64) []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return d.MinAmountValue <= maxAmount })
}

// DepositsByRate returns deposits whose rate range overlaps [lo, hi] percent.
func (p *Products) DepositsByRate(lo, hi *float64) []Deposit {
	return p.filterDeposits(func(d Deposit) bool {
		if lo != nil && d.RateMax < *lo {
			return false
		}
		if hi != nil && d.RateMin > *hi {
			return false
		}
		return true
	})
}

func (p *Products) DepositsWithReplenishment() []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return d.Replenishment })
}

func (p *Products) DepositsWithCapitalization() []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return d.Capitalization })
}

func (p *Products) DepositsByWithdrawal(kind string) []Deposit {
	kind = strings.ToLower(strings.TrimSpace(kind))
	return p.filterDeposits(func(d Deposit) bool { return strings.Contains(strings.ToLower(d.Withdrawal), kind) })
}

func (p *Products) ChildDeposits() []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return d.Child })
}

func (p *Products) OnlineDeposits() []Deposit {
	return p.filterDeposits(func(d Deposit) bool { return d.Online })
}

// DepositCriteria selects deposit recommendations.
type DepositCriteria struct {
	Currency       string   `mapstructure:"currency"`
	MaxMinAmount   *float64 `mapstructure:"max_min_amount"`
	MinRate        *float64 `mapstructure:"min_rate"`
	Replenishment  *bool    `mapstructure:"replenishment"`
	Capitalization *bool    `mapstructure:"capitalization"`
}

// RecommendDeposits filters deposits by the criteria and orders them by
// score, then by best rate.
func (p *Products) RecommendDeposits(c DepositCriteria) []Scored[Deposit] {
	var out []Scored[Deposit]
	for _, d := range p.Deposits {
		score := 0
		if c.Currency != "" {
			if !containsFold(d.Currency, c.Currency) {
				continue
			}
			score += 2
		}
		if c.MaxMinAmount != nil {
			if d.MinAmountValue > *c.MaxMinAmount {
				continue
			}
			score++
		}
		if c.MinRate != nil {
			if d.RateMax < *c.MinRate {
				continue
			}
			score++
		}
		if c.Replenishment != nil && *c.Replenishment == d.Replenishment {
			score++
		}
		if c.Capitalization != nil && *c.Capitalization == d.Capitalization {
			score++
		}
		out = append(out, Scored[Deposit]{Item: d, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Item.RateMax > out[j].Item.RateMax
	})
	return out
}

func hasFeature(c Card, feature string) bool {
	feature = strings.ToLower(strings.TrimSpace(feature))
	if feature == "" {
		return true
	}
	for _, f := range c.Features {
		if strings.Contains(strings.ToLower(f), feature) {
			return true
		}
	}
	for _, b := range c.Benefits {
		if strings.Contains(strings.ToLower(b), feature) {
			return true
		}
	}
	return false
}

func inRange(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}
