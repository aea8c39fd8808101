package quote

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// checkEligibility returns the reason the delivery country cannot be
// served, or "" when it can.
func checkEligibility(store shipping.Store, delivery shipping.Address, cfg shipping.MerchantShippingConfiguration) shipping.ReasonCode {
	switch cfg.ShippingType {
	case shipping.ShippingInternational:
		if !cfg.ShipsTo(delivery.CountryCode) {
			return shipping.ReasonNoShippingToCountry
		}
	default:
		if !strings.EqualFold(delivery.CountryCode, store.Address.CountryCode) {
			return shipping.ReasonNoShippingToCountry
		}
	}
	return ""
}

// selectModule picks the active rate module with the lowest priority,
// breaking ties by code. Processors are never rate providers.
func (s *Service) selectModule(modules map[string]shipping.ModuleConfiguration) (string, bool) {
	candidates := make([]shipping.ModuleConfiguration, 0, len(modules))
	for code, cfg := range modules {
		if !cfg.Active || s.Registry.IsProcessor(code) {
			continue
		}
		cfg.ModuleCode = code
		candidates = append(candidates, cfg)
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ModuleCode < candidates[j].ModuleCode
	})
	return candidates[0].ModuleCode, true
}

// freeShippingApplies requires the total to strictly exceed the threshold.
func freeShippingApplies(cfg shipping.MerchantShippingConfiguration, store shipping.Store, delivery shipping.Address, total decimal.Decimal) bool {
	if !cfg.FreeShippingEnabled || !total.GreaterThan(cfg.FreeShippingThreshold) {
		return false
	}
	if cfg.FreeShippingScope == shipping.FreeShippingAll {
		return true
	}
	return strings.EqualFold(delivery.CountryCode, store.Address.CountryCode)
}

// OrderTotal sums final price times quantity over all items.
func OrderTotal(items []shipping.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.FinalPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// RequiresShipping reports whether any item is shippable.
func RequiresShipping(items []shipping.LineItem) bool {
	for _, item := range items {
		if item.Shippable && item.Quantity > 0 {
			return true
		}
	}
	return false
}
