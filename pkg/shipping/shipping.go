// Package shipping provides the rate module and processor abstractions used
// to compute shipping quotes.
package shipping

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// RateModule computes priced shipping options for a quote.
type RateModule interface {
	// Code returns the module identifier (e.g., "weightBased", "canadapost").
	Code() string

	// GetShippingQuotes returns the options the module can offer.
	GetShippingQuotes(ctx context.Context, qc *QuoteContext) ([]ShippingOption, error)
}

// Processor runs before or after rate computation and may mutate the quote.
type Processor interface {
	// Code returns the processor identifier.
	Code() string

	// Process inspects or mutates qc.Quote.
	Process(ctx context.Context, qc *QuoteContext) error
}

// DistancePreProcessorCode identifies the pre-processor computing the
// distance between origin and delivery.
const DistancePreProcessorCode = "shippingDistancePreProcessor"

// ConfigValidator is implemented by modules that check their configuration
// before it is saved.
type ConfigValidator interface {
	ValidateConfiguration(cfg ModuleConfiguration, store Store) error
}

// Phase tells when a processor runs.
type Phase int

const (
	PhasePre Phase = iota
	PhasePost
)

func (p Phase) String() string {
	if p == PhasePost {
		return "post"
	}
	return "pre"
}

// QuoteContext is everything a module or processor sees during one
// computation. Quote is the only field meant to be mutated.
type QuoteContext struct {
	Quote            *ShippingQuote
	Packages         []PackageDetails
	OrderTotal       decimal.Decimal
	Delivery         Address
	Origin           ShippingOrigin
	Store            Store
	ModuleConfig     *ModuleConfiguration // selected rate module
	ProcessorConfig  *ModuleConfiguration // running processor, nil for modules
	Module           IntegrationModule
	ShippingConfig   MerchantShippingConfiguration
	AvailableModules []IntegrationModule
	Locale           language.Tag

	// UseDistanceModule is set when a distance pre-processor is in the chain.
	UseDistanceModule bool
}

// TotalWeight sums the weight of all packages.
func (qc *QuoteContext) TotalWeight() float64 {
	var w float64
	for _, p := range qc.Packages {
		w += p.Weight
	}
	return w
}
