package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/internal/storage"
	"github.com/tournevent/shipquote/pkg/shipping"
)

const storeYAML = `
stores:
  - code: DEFAULT
    name: Default store
    currency: CAD
    defaultLanguage: en
    address:
      line1: 1 rue Sainte-Catherine
      city: Montreal
      provinceCode: QC
      postalCode: H2X 1Y4
      countryCode: ca
    shipping:
      shippingType: INTERNATIONAL
      shipToCountries: [CA, US]
      freeShippingEnabled: true
      freeShippingThreshold: "100.00"
      freeShippingScope: NATIONAL
      handlingFee: "2.50"
      packageStrategy: BY_ITEM
      selectionPolicy: CHEAPEST
    modules:
      - moduleCode: weightBased
        active: true
        integrationOptions:
          region.north.countries: [CA, US]
          region.north.rates: ["5:10.00", "20:25.00"]
    origin:
      active: true
      address:
        city: Laval
        postalCode: H7N 1A1
        countryCode: CA
        latitude: 45.55
        longitude: -73.70
  - code: PICKUP
    name: Pickup only
    currency: CAD
    address:
      city: Quebec
      countryCode: CA
`

func TestFileStore(t *testing.T) {
	fs, err := storage.ParseFile([]byte(storeYAML))
	require.NoError(t, err)
	ctx := context.Background()

	store, err := fs.Store(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "CA", store.Address.CountryCode)
	assert.Equal(t, "H2X 1Y4", store.Address.PostalCode)

	cfg, err := fs.MerchantShippingConfiguration(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, shipping.ShippingInternational, cfg.ShippingType)
	assert.True(t, cfg.FreeShippingThreshold.Equal(decimal.RequireFromString("100")))
	assert.True(t, cfg.HandlingFee.Equal(decimal.RequireFromString("2.5")))

	cfg, err = fs.MerchantShippingConfiguration(ctx, "PICKUP")
	require.NoError(t, err)
	assert.Equal(t, shipping.DefaultShippingConfiguration(), cfg)

	modules, err := fs.ModuleConfigurations(ctx, "DEFAULT")
	require.NoError(t, err)
	require.Contains(t, modules, "weightBased")
	assert.Equal(t, []string{"5:10.00", "20:25.00"}, modules["weightBased"].IntegrationOptions["region.north.rates"])

	origin, err := fs.ShippingOrigin(ctx, "DEFAULT")
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, "Laval", origin.Address.City)
	assert.True(t, origin.Address.HasCoordinates())

	origin, err = fs.ShippingOrigin(ctx, "PICKUP")
	require.NoError(t, err)
	assert.Nil(t, origin)

	_, err = fs.Store(ctx, "NOPE")
	assert.True(t, errors.Is(err, shipping.ErrStoreNotFound))
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	fs, err := storage.ParseFile([]byte(storeYAML))
	require.NoError(t, err)
	ctx := context.Background()

	modules, err := fs.ModuleConfigurations(ctx, "DEFAULT")
	require.NoError(t, err)
	modules["weightBased"].IntegrationOptions["region.north.rates"][0] = "1:1.00"
	cfg, err := fs.MerchantShippingConfiguration(ctx, "DEFAULT")
	require.NoError(t, err)
	cfg.ShipToCountries[0] = "FR"

	modules, err = fs.ModuleConfigurations(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "5:10.00", modules["weightBased"].IntegrationOptions["region.north.rates"][0])
	cfg, err = fs.MerchantShippingConfiguration(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "CA", cfg.ShipToCountries[0])
}

func TestFileStore_SaveModuleConfiguration(t *testing.T) {
	fs, err := storage.ParseFile([]byte(storeYAML))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.SaveModuleConfiguration(ctx, "PICKUP", shipping.ModuleConfiguration{ModuleCode: "storePick", Active: true}))

	modules, err := fs.ModuleConfigurations(ctx, "PICKUP")
	require.NoError(t, err)
	assert.True(t, modules["storePick"].Active)

	err = fs.SaveModuleConfiguration(ctx, "NOPE", shipping.ModuleConfiguration{ModuleCode: "storePick"})
	assert.True(t, errors.Is(err, shipping.ErrStoreNotFound))
}

func TestParseFile_Invalid(t *testing.T) {
	_, err := storage.ParseFile([]byte("stores: [ {code: A}, {code: A} ]"))
	assert.True(t, errors.Is(err, shipping.ErrInvalidConfiguration))

	_, err = storage.ParseFile([]byte("stores: {"))
	assert.True(t, errors.Is(err, shipping.ErrInvalidConfiguration))
}

func TestFileStore_Seed(t *testing.T) {
	fs, err := storage.ParseFile([]byte(storeYAML))
	require.NoError(t, err)
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, fs.Seed(ctx, repo))

	store, err := repo.Store(ctx, "PICKUP")
	require.NoError(t, err)
	assert.Equal(t, "Quebec", store.Address.City)

	cfg, err := repo.MerchantShippingConfiguration(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "US"}, cfg.ShipToCountries)

	modules, err := repo.ModuleConfigurations(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.True(t, modules["weightBased"].Active)

	origin, err := repo.ShippingOrigin(ctx, "DEFAULT")
	require.NoError(t, err)
	require.NotNil(t, origin)
	assert.Equal(t, "Laval", origin.Address.City)
}

func TestMemoryQuotes(t *testing.T) {
	m := storage.NewMemoryQuotes()

	id, err := m.PersistQuote(context.Background(), &shipping.Quote{CartID: "cart-1"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, m.Quotes(), 1)
	assert.Equal(t, id, m.Quotes()[0].ID)
}
