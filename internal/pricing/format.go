package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts in a store's currency.
type Formatter struct {
	fallback language.Tag
}

// NewFormatter creates a formatter. fallback is used when a store has no
// parseable default language.
func NewFormatter(fallback language.Tag) *Formatter {
	return &Formatter{fallback: fallback}
}

// Format renders amount for the store. National stores get locale symbols
// and separators ("$1,234.50"); the others get the ISO code ("CAD 1234.50").
func (f *Formatter) Format(store shipping.Store, amount decimal.Decimal) (string, error) {
	unit, err := currency.ParseISO(store.Currency)
	if err != nil {
		return "", fmt.Errorf("%w: store %s currency %q", shipping.ErrInvalidConfiguration, store.Code, store.Currency)
	}

	scale, _ := currency.Standard.Rounding(unit)
	rounded := amount.Round(int32(scale))

	if !store.CurrencyFormatNational {
		return International(unit, rounded, scale), nil
	}

	tag := f.storeTag(store)
	p := message.NewPrinter(tag)
	value, _ := rounded.Float64()
	symbol := p.Sprint(currency.NarrowSymbol(unit))
	return symbol + p.Sprint(number.Decimal(value, number.Scale(scale))), nil
}

// International renders "CODE amount" with the currency's standard scale.
func International(unit currency.Unit, amount decimal.Decimal, scale int) string {
	return unit.String() + " " + amount.StringFixed(int32(scale))
}

func (f *Formatter) storeTag(store shipping.Store) language.Tag {
	lang := store.DefaultLanguage
	if lang == "" {
		return f.fallback
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return f.fallback
	}
	if _, conf := tag.Region(); conf != language.Exact && store.Address.CountryCode != "" {
		if region, err := language.ParseRegion(store.Address.CountryCode); err == nil {
			if withRegion, err := language.Compose(tag, region); err == nil {
				tag = withRegion
			}
		}
	}
	return tag
}
