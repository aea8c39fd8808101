package packaging_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/internal/packaging"
	"github.com/tournevent/shipquote/pkg/shipping"
)

func item(sku string, qty int, weight float64, price string) shipping.LineItem {
	return shipping.LineItem{
		SKU:        sku,
		Quantity:   qty,
		FinalPrice: decimal.RequireFromString(price),
		Weight:     weight,
		Length:     10,
		Width:      10,
		Height:     10,
		Shippable:  true,
	}
}

func boxConfig() shipping.MerchantShippingConfiguration {
	cfg := shipping.DefaultShippingConfiguration()
	cfg.PackageStrategy = shipping.PackageByBox
	cfg.BoxLength = 20
	cfg.BoxWidth = 20
	cfg.BoxHeight = 20
	cfg.BoxMaxWeight = 10
	return cfg
}

func TestBuildPackages_ByItem(t *testing.T) {
	b := packaging.NewBuilder()

	virtual := item("ebook", 1, 0, "9.99")
	virtual.Shippable = false

	pkgs, err := b.BuildPackages([]shipping.LineItem{
		item("shirt", 2, 0.5, "20.00"),
		virtual,
		item("mug", 1, 1.2, "12.00"),
	}, shipping.DefaultShippingConfiguration())

	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	assert.Equal(t, "shirt-1", pkgs[0].ID)
	assert.Equal(t, "shirt-2", pkgs[1].ID)
	assert.Equal(t, 1.2, pkgs[2].Weight)
	assert.True(t, pkgs[2].DeclaredValue.Equal(decimal.RequireFromString("12")))
}

func TestBuildPackages_ByBox(t *testing.T) {
	b := packaging.NewBuilder()

	pkgs, err := b.BuildPackages([]shipping.LineItem{
		item("brick", 3, 4, "5.00"),
	}, boxConfig())

	require.NoError(t, err)
	// two bricks fill a 10kg box, the third opens another
	require.Len(t, pkgs, 2)
	assert.Equal(t, 8.0, pkgs[0].Weight)
	assert.Equal(t, 2, pkgs[0].ItemCount)
	assert.True(t, pkgs[0].DeclaredValue.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, 4.0, pkgs[1].Weight)
	assert.Equal(t, 20.0, pkgs[1].Length)
}

func TestBuildPackages_ByBox_VolumeLimit(t *testing.T) {
	b := packaging.NewBuilder()

	// 8 units of 1000cm3 fill a 8000cm3 box
	pkgs, err := b.BuildPackages([]shipping.LineItem{
		item("cube", 9, 0.1, "1.00"),
	}, boxConfig())

	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, 8, pkgs[0].ItemCount)
	assert.Equal(t, 1, pkgs[1].ItemCount)
}

func TestBuildPackages_ByBox_ItemTooHeavy(t *testing.T) {
	b := packaging.NewBuilder()

	_, err := b.BuildPackages([]shipping.LineItem{item("anvil", 1, 50, "100.00")}, boxConfig())
	assert.True(t, errors.Is(err, shipping.ErrInvalidPackage))
}

func TestBuildPackages_ByBox_MissingBox(t *testing.T) {
	b := packaging.NewBuilder()
	cfg := shipping.DefaultShippingConfiguration()
	cfg.PackageStrategy = shipping.PackageByBox

	_, err := b.BuildPackages([]shipping.LineItem{item("mug", 1, 1, "1.00")}, cfg)
	assert.True(t, errors.Is(err, shipping.ErrInvalidConfiguration))
}

func TestBuildPackages_NegativeWeight(t *testing.T) {
	b := packaging.NewBuilder()

	_, err := b.BuildPackages([]shipping.LineItem{item("odd", 1, -1, "1.00")}, shipping.DefaultShippingConfiguration())
	assert.True(t, errors.Is(err, shipping.ErrInvalidPackage))
}
