package rules

import (
	"context"
	"fmt"

	"github.com/tournevent/shipquote/pkg/shipping"
)

// DecisionTableCode is the code of the module selecting pre-processor.
const DecisionTableCode = "shippingDecisionTablePreProcessor"

// DecisionTable picks the rate module with a JsonLogic rule returning a
// module code. An empty or null result keeps the current module.
type DecisionTable struct{}

// NewDecisionTable creates the pre-processor.
func NewDecisionTable() *DecisionTable {
	return &DecisionTable{}
}

// Code returns the processor code.
func (d *DecisionTable) Code() string {
	return DecisionTableCode
}

// Process evaluates the rule from the processor's own configuration.
func (d *DecisionTable) Process(_ context.Context, qc *shipping.QuoteContext) error {
	rule := qc.ProcessorConfig.Key(KeyRule, "")
	if rule == "" {
		return nil
	}
	result, err := Evaluate(rule, Data(qc))
	if err != nil {
		return err
	}
	switch code := result.(type) {
	case nil:
		return nil
	case string:
		if code != "" {
			qc.Quote.CurrentModule = code
		}
		return nil
	default:
		return fmt.Errorf("decision table returned %T, expected a module code", result)
	}
}

// ValidateConfiguration checks the rule evaluates. An empty rule is
// accepted and keeps the current module.
func (d *DecisionTable) ValidateConfiguration(cfg shipping.ModuleConfiguration, _ shipping.Store) error {
	rule := cfg.Key(KeyRule, "")
	if rule == "" {
		return nil
	}
	if err := Validate(rule); err != nil {
		return fmt.Errorf("%s: %w", DecisionTableCode, err)
	}
	return nil
}

var (
	_ shipping.Processor       = (*DecisionTable)(nil)
	_ shipping.ConfigValidator = (*DecisionTable)(nil)
)
