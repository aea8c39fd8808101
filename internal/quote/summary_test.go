package quote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/internal/quote"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/mock"
	"github.com/tournevent/shipquote/pkg/shipping/rules"
	"golang.org/x/text/language"
)

func TestSummary(t *testing.T) {
	b := newBackend()
	cfg := shipping.DefaultShippingConfiguration()
	cfg.SelectionPolicy = shipping.SelectAll
	cfg.HandlingFee = decimal.RequireFromString("1.50")
	b.configs["DEFAULT"] = cfg
	reg := shipping.NewRegistry()
	reg.Register(mock.WithPrices("weightBased", "10.00", "20.00"), shipping.IntegrationModule{})
	b.activate("DEFAULT", "weightBased", 0)
	svc := newService(b, reg)

	q, err := svc.GetShippingQuote(context.Background(), request("CA", "H2X"))
	require.NoError(t, err)

	summary, err := svc.Summary(q, q.Options[1].OptionID)
	require.NoError(t, err)
	assert.Equal(t, "weightBased", summary.ModuleCode)
	assert.True(t, summary.Shipping.Equal(decimal.RequireFromString("20")))
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("21.50")))

	summary, err = svc.Summary(q, "")
	require.NoError(t, err)
	assert.True(t, summary.Shipping.Equal(decimal.RequireFromString("10")))

	_, err = svc.Summary(q, "missing")
	assert.Error(t, err)
}

func TestSummary_FreeShipping(t *testing.T) {
	svc := newService(newBackend(), shipping.NewRegistry())
	q := &shipping.ShippingQuote{CurrentModule: "weightBased", FreeShipping: true}

	summary, err := svc.Summary(q, "anything")

	require.NoError(t, err)
	assert.True(t, summary.FreeShipping)
	assert.True(t, summary.Total.IsZero())
}

func TestRequiresShipping(t *testing.T) {
	items := cartItems("5.00")
	assert.True(t, quote.RequiresShipping(items))

	items[0].Shippable = false
	assert.False(t, quote.RequiresShipping(items))
	assert.False(t, quote.RequiresShipping(nil))
}

func TestOrderTotal(t *testing.T) {
	items := cartItems("5.25", "10.00")
	items[0].Quantity = 2
	assert.True(t, quote.OrderTotal(items).Equal(decimal.RequireFromString("20.50")))
}

func TestShipToCountries(t *testing.T) {
	b := newBackend()
	svc := newService(b, shipping.NewRegistry())

	countries, err := svc.ShipToCountries(context.Background(), "DEFAULT", language.French)
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "CA", countries[0].Code)
	assert.Equal(t, "Canada", countries[0].Name)

	cfg := shipping.DefaultShippingConfiguration()
	cfg.ShippingType = shipping.ShippingInternational
	cfg.ShipToCountries = []string{"US", "DE"}
	b.configs["DEFAULT"] = cfg

	countries, err = svc.ShipToCountries(context.Background(), "DEFAULT", language.French)
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "Allemagne", countries[0].Name)
	assert.Equal(t, "États-Unis", countries[1].Name)

	_, err = svc.ShipToCountries(context.Background(), "NOPE", language.English)
	assert.True(t, errors.Is(err, shipping.ErrStoreNotFound))
}

type validatingModule struct {
	*mock.Module
}

func (v validatingModule) ValidateConfiguration(cfg shipping.ModuleConfiguration, store shipping.Store) error {
	if cfg.Key("apiKey", "") == "" {
		return errors.New("apiKey is required")
	}
	return nil
}

func TestConfigureModule(t *testing.T) {
	b := newBackend()
	reg := shipping.NewRegistry()
	reg.Register(validatingModule{mock.New("canadapost")}, shipping.IntegrationModule{Regions: []string{"CA"}})
	reg.Register(mock.New("usps"), shipping.IntegrationModule{Regions: []string{"US"}})
	reg.RegisterProcessor(mock.NewProcessor("shippingDistancePreProcessor"), shipping.PhasePre)
	svc := newService(b, reg)
	ctx := context.Background()

	err := svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{ModuleCode: "canadapost", Active: true})
	assert.True(t, errors.Is(err, shipping.ErrRejectedConfiguration))

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{ModuleCode: "ghost"})
	assert.True(t, errors.Is(err, shipping.ErrModuleNotFound))

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{ModuleCode: "usps"})
	assert.True(t, errors.Is(err, shipping.ErrRejectedConfiguration))

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{ModuleCode: "canadapost", Environment: "STAGING"})
	assert.True(t, errors.Is(err, shipping.ErrRejectedConfiguration))
	assert.False(t, errors.Is(err, shipping.ErrInvalidConfiguration))

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{
		ModuleCode:      "canadapost",
		Active:          true,
		Environment:     "TEST",
		IntegrationKeys: map[string]string{"apiKey": "k"},
	})
	require.NoError(t, err)
	require.Len(t, b.saved, 1)
	assert.Equal(t, "canadapost", b.saved[0].ModuleCode)
}

func TestConfigureModule_Processor(t *testing.T) {
	b := newBackend()
	b.stores["US"] = shipping.Store{Code: "US", Currency: "USD", Address: shipping.Address{CountryCode: "US"}}
	reg := shipping.NewRegistry()
	reg.RegisterProcessor(mock.NewProcessor("shippingDistancePreProcessor"), shipping.PhasePre)
	reg.RegisterProcessor(rules.NewDecisionTable(), shipping.PhasePre)
	svc := newService(b, reg)
	ctx := context.Background()

	err := svc.ConfigureModule(ctx, "US", shipping.ModuleConfiguration{ModuleCode: "shippingDistancePreProcessor", Active: true})
	require.NoError(t, err)

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{
		ModuleCode:      rules.DecisionTableCode,
		Active:          true,
		IntegrationKeys: map[string]string{rules.KeyRule: `{"if": [{"==": [{"var": "country"}, "CA"]}, "storePick", ""]}`},
	})
	require.NoError(t, err)

	err = svc.ConfigureModule(ctx, "DEFAULT", shipping.ModuleConfiguration{
		ModuleCode:      rules.DecisionTableCode,
		Active:          true,
		IntegrationKeys: map[string]string{rules.KeyRule: `{"if": [`},
	})
	assert.True(t, errors.Is(err, shipping.ErrRejectedConfiguration))

	require.Len(t, b.saved, 2)
	assert.Equal(t, "shippingDistancePreProcessor", b.saved[0].ModuleCode)
	assert.Equal(t, rules.DecisionTableCode, b.saved[1].ModuleCode)
}
