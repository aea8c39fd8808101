package storepickup_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/storepickup"
)

func TestModule_GetShippingQuotes(t *testing.T) {
	qc := &shipping.QuoteContext{
		Quote: &shipping.ShippingQuote{},
		Store: shipping.Store{Code: "DEFAULT", Name: "Plateau boutique"},
		ModuleConfig: &shipping.ModuleConfiguration{
			ModuleCode:      storepickup.Code,
			IntegrationKeys: map[string]string{storepickup.KeyNote: "Pick up at the counter"},
		},
	}

	options, err := storepickup.New().GetShippingQuotes(context.Background(), qc)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.True(t, options[0].Price.IsZero())
	assert.Equal(t, "Pick up at the counter", options[0].OptionName)
	assert.Equal(t, "Plateau boutique", options[0].Description)

	qc.ModuleConfig.IntegrationKeys[storepickup.KeyPrice] = "2.99"
	options, err = storepickup.New().GetShippingQuotes(context.Background(), qc)
	require.NoError(t, err)
	assert.True(t, options[0].Price.Equal(decimal.RequireFromString("2.99")))
}

func TestModule_ValidateConfiguration(t *testing.T) {
	m := storepickup.New()

	assert.NoError(t, m.ValidateConfiguration(shipping.ModuleConfiguration{}, shipping.Store{}))
	assert.Error(t, m.ValidateConfiguration(shipping.ModuleConfiguration{
		IntegrationKeys: map[string]string{storepickup.KeyPrice: "free"},
	}, shipping.Store{}))
}
