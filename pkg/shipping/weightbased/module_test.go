package weightbased_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/weightbased"
)

func table() map[string][]string {
	return map[string][]string{
		"region.north.countries":  {"CA", "us"},
		"region.north.rates":      {"10:25.00", "2:8.50", "5:12.00"},
		"region.europe.countries": {"FR", "DE"},
		"region.europe.rates":     {"5:30.00"},
	}
}

func quoteContext(country string, weights ...float64) *shipping.QuoteContext {
	pkgs := make([]shipping.PackageDetails, 0, len(weights))
	for _, w := range weights {
		pkgs = append(pkgs, shipping.PackageDetails{Weight: w})
	}
	return &shipping.QuoteContext{
		Quote:        &shipping.ShippingQuote{},
		Packages:     pkgs,
		Delivery:     shipping.Address{CountryCode: country},
		ModuleConfig: &shipping.ModuleConfiguration{ModuleCode: weightbased.Code, IntegrationOptions: table()},
	}
}

func TestModule_GetShippingQuotes(t *testing.T) {
	tests := []struct {
		name    string
		country string
		weights []float64
		price   string
		region  string
	}{
		{"first bracket", "CA", []float64{1.5}, "8.50", "north"},
		{"bracket boundary", "US", []float64{2}, "8.50", "north"},
		{"summed weight", "CA", []float64{2, 2}, "12.00", "north"},
		{"other region", "DE", []float64{1}, "30.00", "europe"},
	}

	m := weightbased.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options, err := m.GetShippingQuotes(context.Background(), quoteContext(tt.country, tt.weights...))
			require.NoError(t, err)
			require.Len(t, options, 1)
			assert.True(t, options[0].Price.Equal(decimal.RequireFromString(tt.price)))
			assert.Equal(t, tt.region, options[0].OptionCode)
			assert.Empty(t, options[0].OptionName)
		})
	}
}

func TestModule_GetShippingQuotes_NoMatch(t *testing.T) {
	m := weightbased.New()

	options, err := m.GetShippingQuotes(context.Background(), quoteContext("JP", 1))
	require.NoError(t, err)
	assert.Empty(t, options)

	options, err = m.GetShippingQuotes(context.Background(), quoteContext("CA", 11))
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestModule_GetShippingQuotes_InvalidTable(t *testing.T) {
	qc := quoteContext("CA", 1)
	qc.ModuleConfig.IntegrationOptions["region.north.rates"] = []string{"heavy"}

	_, err := weightbased.New().GetShippingQuotes(context.Background(), qc)

	var moduleErr *shipping.ModuleError
	require.True(t, errors.As(err, &moduleErr))
	assert.Equal(t, "INVALID_TABLE", moduleErr.Code)
}

func TestModule_ValidateConfiguration(t *testing.T) {
	m := weightbased.New()

	assert.NoError(t, m.ValidateConfiguration(shipping.ModuleConfiguration{IntegrationOptions: table()}, shipping.Store{}))
	assert.Error(t, m.ValidateConfiguration(shipping.ModuleConfiguration{}, shipping.Store{}))
	assert.Error(t, m.ValidateConfiguration(shipping.ModuleConfiguration{
		IntegrationOptions: map[string][]string{"region.a.rates": {"5:-1"}},
	}, shipping.Store{}))
}

func TestParseRegions_Order(t *testing.T) {
	regions, err := weightbased.ParseRegions(table())

	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "europe", regions[0].Name)
	assert.Equal(t, []string{"CA", "US"}, regions[1].Countries)
	assert.Equal(t, 2.0, regions[1].Brackets[0].MaxWeight)
	assert.Equal(t, 10.0, regions[1].Brackets[2].MaxWeight)
}
