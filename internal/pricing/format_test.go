package pricing_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/internal/pricing"
	"github.com/tournevent/shipquote/pkg/shipping"
	"golang.org/x/text/language"
)

func TestFormatter_International(t *testing.T) {
	f := pricing.NewFormatter(language.English)
	store := shipping.Store{Code: "DEFAULT", Currency: "CAD"}

	got, err := f.Format(store, dec("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "CAD 12.50", got)
}

func TestFormatter_InternationalZeroScaleCurrency(t *testing.T) {
	f := pricing.NewFormatter(language.English)
	store := shipping.Store{Code: "JP", Currency: "JPY"}

	got, err := f.Format(store, dec("1234.6"))
	require.NoError(t, err)
	assert.Equal(t, "JPY 1235", got)
}

func TestFormatter_National(t *testing.T) {
	f := pricing.NewFormatter(language.English)
	store := shipping.Store{
		Code:                   "US",
		Currency:               "USD",
		DefaultLanguage:        "en",
		CurrencyFormatNational: true,
		Address:                shipping.Address{CountryCode: "US"},
	}

	got, err := f.Format(store, dec("1234.5"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "$"), got)
	assert.Contains(t, got, "1,234.50")
}

func TestFormatter_InvalidCurrency(t *testing.T) {
	f := pricing.NewFormatter(language.English)

	_, err := f.Format(shipping.Store{Code: "X", Currency: "NOPE"}, dec("1"))
	assert.True(t, errors.Is(err, shipping.ErrInvalidConfiguration))
}
