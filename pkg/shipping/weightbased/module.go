// Package weightbased provides a rate module pricing shipments from a
// per-region weight table.
package weightbased

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Code is the module code.
const Code = "weightBased"

// Region is a set of countries sharing a rate table.
type Region struct {
	Name      string
	Countries []string
	Brackets  []Bracket
}

// Bracket prices shipments up to MaxWeight kg.
type Bracket struct {
	MaxWeight float64
	Price     decimal.Decimal
}

// Module is the weight table rate module.
type Module struct{}

// New creates the module.
func New() *Module {
	return &Module{}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Weight based rates", Regions: []string{"*"}, Custom: true}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration rejects tables that cannot be parsed.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, _ shipping.Store) error {
	regions, err := ParseRegions(cfg.IntegrationOptions)
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		return fmt.Errorf("weightBased: no region configured")
	}
	return nil
}

// GetShippingQuotes returns one option priced from the first region
// containing the delivery country and the first bracket covering the total
// weight. It returns no options when either is missing.
func (m *Module) GetShippingQuotes(_ context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	if qc.ModuleConfig == nil {
		return nil, nil
	}
	regions, err := ParseRegions(qc.ModuleConfig.IntegrationOptions)
	if err != nil {
		return nil, shipping.NewModuleError(Code, "INVALID_TABLE", err.Error()).WithCause(err)
	}

	weight := qc.TotalWeight()
	for _, r := range regions {
		if !r.covers(qc.Delivery.CountryCode) {
			continue
		}
		for _, b := range r.Brackets {
			if weight <= b.MaxWeight {
				return []shipping.ShippingOption{{
					OptionCode: r.Name,
					Price:      b.Price,
				}}, nil
			}
		}
		return nil, nil
	}
	return nil, nil
}

func (r Region) covers(country string) bool {
	for _, c := range r.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// ParseRegions reads region.<name>.countries and region.<name>.rates
// options. Regions are ordered by name and brackets by max weight.
func ParseRegions(options map[string][]string) ([]Region, error) {
	byName := make(map[string]*Region)
	region := func(name string) *Region {
		r, ok := byName[name]
		if !ok {
			r = &Region{Name: name}
			byName[name] = r
		}
		return r
	}

	for key, values := range options {
		parts := strings.Split(key, ".")
		if len(parts) != 3 || parts[0] != "region" || parts[1] == "" {
			continue
		}
		switch parts[2] {
		case "countries":
			r := region(parts[1])
			for _, v := range values {
				if c := strings.ToUpper(strings.TrimSpace(v)); c != "" {
					r.Countries = append(r.Countries, c)
				}
			}
		case "rates":
			r := region(parts[1])
			for _, v := range values {
				b, err := parseBracket(v)
				if err != nil {
					return nil, fmt.Errorf("region %s: %w", parts[1], err)
				}
				r.Brackets = append(r.Brackets, b)
			}
		}
	}

	regions := make([]Region, 0, len(byName))
	for _, r := range byName {
		sort.Slice(r.Brackets, func(i, j int) bool { return r.Brackets[i].MaxWeight < r.Brackets[j].MaxWeight })
		regions = append(regions, *r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions, nil
}

func parseBracket(s string) (Bracket, error) {
	weight, price, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Bracket{}, fmt.Errorf("rate %q: expected maxWeight:price", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil || w <= 0 {
		return Bracket{}, fmt.Errorf("rate %q: invalid max weight", s)
	}
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil || p.IsNegative() {
		return Bracket{}, fmt.Errorf("rate %q: invalid price", s)
	}
	return Bracket{MaxWeight: w, Price: p}, nil
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
