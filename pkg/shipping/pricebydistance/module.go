// Package pricebydistance provides a rate module pricing shipments by the
// distance computed by the distance pre-processor.
package pricebydistance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Code is the module code.
const Code = "priceByDistance"

// Integration keys.
const (
	KeyBasePrice     = "basePrice"
	KeyPricePerKm    = "pricePerKm"
	KeyEstimatedDays = "estimatedDays"
	KeyMaxDistance   = "maxDistance"
)

// Module prices basePrice + pricePerKm × distance.
type Module struct{}

// New creates the module.
func New() *Module {
	return &Module{}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Price by distance", Regions: []string{"*"}, Custom: true}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration checks the numeric keys.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, _ shipping.Store) error {
	_, err := readRates(&cfg)
	return err
}

// GetShippingQuotes needs the distance pre-processor in the chain. A
// delivery beyond maxDistance gets no options.
func (m *Module) GetShippingQuotes(_ context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	if !qc.UseDistanceModule {
		return nil, shipping.NewModuleError(Code, "NO_DISTANCE_PROCESSOR",
			"priceByDistance requires "+shipping.DistancePreProcessorCode)
	}
	r, err := readRates(qc.ModuleConfig)
	if err != nil {
		return nil, shipping.NewModuleError(Code, "INVALID_CONFIGURATION", err.Error()).WithCause(err)
	}
	distance, ok := qc.Quote.Distance()
	if !ok {
		return nil, nil
	}
	if r.maxDistance > 0 && distance > r.maxDistance {
		return nil, nil
	}

	km := decimal.NewFromFloat(distance)
	price := r.base.Add(r.perKm.Mul(km)).Round(2)
	return []shipping.ShippingOption{{
		OptionCode:    Code,
		Price:         price,
		Description:   fmt.Sprintf("%.1f km", distance),
		EstimatedDays: r.days,
	}}, nil
}

type rates struct {
	base        decimal.Decimal
	perKm       decimal.Decimal
	days        int
	maxDistance float64
}

func readRates(cfg *shipping.ModuleConfiguration) (rates, error) {
	var r rates
	var err error
	if r.base, err = decimal.NewFromString(cfg.Key(KeyBasePrice, "0")); err != nil {
		return r, fmt.Errorf("%s: %w", KeyBasePrice, err)
	}
	if r.perKm, err = decimal.NewFromString(cfg.Key(KeyPricePerKm, "0")); err != nil {
		return r, fmt.Errorf("%s: %w", KeyPricePerKm, err)
	}
	if r.base.IsNegative() || r.perKm.IsNegative() {
		return r, fmt.Errorf("prices must not be negative")
	}
	if r.days, err = strconv.Atoi(cfg.Key(KeyEstimatedDays, "0")); err != nil {
		return r, fmt.Errorf("%s: %w", KeyEstimatedDays, err)
	}
	if r.maxDistance, err = strconv.ParseFloat(cfg.Key(KeyMaxDistance, "0"), 64); err != nil {
		return r, fmt.Errorf("%s: %w", KeyMaxDistance, err)
	}
	return r, nil
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
