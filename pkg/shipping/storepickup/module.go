// Package storepickup provides the in-store pickup rate module.
package storepickup

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Code is the module code.
const Code = "storePick"

// Integration keys.
const (
	KeyPrice = "price"
	KeyNote  = "note"
)

// Module offers a single pickup option.
type Module struct{}

// New creates the module.
func New() *Module {
	return &Module{}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Store pickup", Regions: []string{"*"}}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration checks the price.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, _ shipping.Store) error {
	_, err := price(&cfg)
	return err
}

// GetShippingQuotes returns the pickup option named after the configured
// note.
func (m *Module) GetShippingQuotes(_ context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	p, err := price(qc.ModuleConfig)
	if err != nil {
		return nil, shipping.NewModuleError(Code, "INVALID_CONFIGURATION", err.Error()).WithCause(err)
	}
	return []shipping.ShippingOption{{
		OptionCode:  Code,
		OptionName:  qc.ModuleConfig.Key(KeyNote, ""),
		Description: qc.Store.Name,
		Price:       p,
	}}, nil
}

func price(cfg *shipping.ModuleConfiguration) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(cfg.Key(KeyPrice, "0"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", KeyPrice, err)
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", KeyPrice)
	}
	return p, nil
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
