package rules

import (
	"context"
	"fmt"

	"github.com/tournevent/shipquote/pkg/shipping"
)

// ModuleCode is the code of the rule based rate module.
const ModuleCode = "customQuotesRules"

// Module prices a quote with the store's JsonLogic rule.
type Module struct{}

// NewModule creates the module.
func NewModule() *Module {
	return &Module{}
}

// ModuleMetadata describes the module for the registry.
func ModuleMetadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: ModuleCode, Name: "Custom shipping rules", Regions: []string{"*"}, Custom: true}
}

// Code returns the module code.
func (m *Module) Code() string {
	return ModuleCode
}

// ValidateConfiguration checks the rule evaluates.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, _ shipping.Store) error {
	if err := Validate(cfg.Key(KeyRule, "")); err != nil {
		return fmt.Errorf("customQuotesRules: %w", err)
	}
	return nil
}

// GetShippingQuotes returns one option when the rule yields a price.
func (m *Module) GetShippingQuotes(_ context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	rule := qc.ModuleConfig.Key(KeyRule, "")
	result, err := Evaluate(rule, Data(qc))
	if err != nil {
		return nil, shipping.NewModuleError(ModuleCode, "RULE_ERROR", err.Error()).WithCause(err)
	}
	price, ok, err := toPrice(result)
	if err != nil {
		return nil, shipping.NewModuleError(ModuleCode, "RULE_RESULT", err.Error())
	}
	if !ok {
		return nil, nil
	}
	return []shipping.ShippingOption{{
		OptionCode: ModuleCode,
		OptionName: qc.ModuleConfig.Key("name", ""),
		Price:      price,
	}}, nil
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
