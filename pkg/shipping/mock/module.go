// Package mock provides mock rate modules and processors for testing.
package mock

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Module is a mock rate module.
type Module struct {
	code  string
	Err   error
	Calls int

	// Prices, when set, replaces the default options with one option per price.
	Prices []string

	OnGetShippingQuotes func(ctx context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error)
}

// New creates a new mock module.
func New(code string) *Module {
	return &Module{code: code}
}

// WithPrices creates a mock module quoting one option per price.
func WithPrices(code string, prices ...string) *Module {
	return &Module{code: code, Prices: prices}
}

// Code returns the module code.
func (m *Module) Code() string {
	return m.code
}

// GetShippingQuotes returns mock shipping options.
func (m *Module) GetShippingQuotes(ctx context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.OnGetShippingQuotes != nil {
		return m.OnGetShippingQuotes(ctx, qc)
	}

	prices := m.Prices
	if prices == nil {
		prices = []string{"15.82", "29.95"}
	}

	options := make([]shipping.ShippingOption, 0, len(prices))
	for i, p := range prices {
		options = append(options, shipping.ShippingOption{
			OptionID:      fmt.Sprintf("%s-%d", m.code, i),
			OptionCode:    fmt.Sprintf("OPT%d", i),
			OptionName:    fmt.Sprintf("%s option %d", m.code, i),
			Price:         decimal.RequireFromString(p),
			EstimatedDays: i + 2,
		})
	}
	return options, nil
}

// Processor is a mock processor.
type Processor struct {
	code  string
	Err   error
	Calls int

	// SwitchTo, when set, makes the processor select another module.
	SwitchTo string

	// Seen records the processor configuration of each call.
	Seen []*shipping.ModuleConfiguration

	OnProcess func(ctx context.Context, qc *shipping.QuoteContext) error
}

// NewProcessor creates a new mock processor.
func NewProcessor(code string) *Processor {
	return &Processor{code: code}
}

// Code returns the processor code.
func (p *Processor) Code() string {
	return p.code
}

// Process records the call and applies the configured behavior.
func (p *Processor) Process(ctx context.Context, qc *shipping.QuoteContext) error {
	p.Calls++
	p.Seen = append(p.Seen, qc.ProcessorConfig)
	if p.Err != nil {
		return p.Err
	}
	if p.SwitchTo != "" {
		qc.Quote.CurrentModule = p.SwitchTo
	}
	if p.OnProcess != nil {
		return p.OnProcess(ctx, qc)
	}
	return nil
}
