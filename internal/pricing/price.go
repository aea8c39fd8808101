// Package pricing computes final product prices and formats amounts for a
// store.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ProductPrice is a stored price with an optional special (discount) amount.
type ProductPrice struct {
	Code          string
	Amount        decimal.Decimal
	SpecialAmount *decimal.Decimal
	SpecialStart  *time.Time
	SpecialEnd    *time.Time
	DefaultPrice  bool
}

// FinalPrice is the price a customer pays for a ProductPrice at a moment.
type FinalPrice struct {
	Price           ProductPrice
	FinalPrice      decimal.Decimal
	OriginalPrice   decimal.Decimal
	Discounted      bool
	DiscountedPrice *decimal.Decimal
	DiscountPercent int
	DiscountEndDate *time.Time
	DefaultPrice    bool

	AdditionalPrices []FinalPrice
}

// Calculator derives final prices. Now is injectable for tests.
type Calculator struct {
	Now func() time.Time
}

// NewCalculator creates a calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{Now: time.Now}
}

// FinalPrice computes the final price of a single price record.
func (c *Calculator) FinalPrice(price ProductPrice) FinalPrice {
	now := c.now()
	fp := FinalPrice{
		Price:         price,
		FinalPrice:    price.Amount,
		OriginalPrice: price.Amount,
		DefaultPrice:  price.DefaultPrice,
	}

	if !discountActive(price, now) {
		return fp
	}
	special := *price.SpecialAmount
	if special.GreaterThan(price.Amount) {
		return fp
	}

	fp.Discounted = true
	fp.FinalPrice = special
	fp.DiscountedPrice = &special
	fp.DiscountEndDate = price.SpecialEnd
	fp.DiscountPercent = discountPercent(price.Amount, special)
	return fp
}

// ProductFinalPrice selects the default price among prices, adds attribute
// adjustments to it and reports the other prices as additional prices.
func (c *Calculator) ProductFinalPrice(prices []ProductPrice, adjustments ...decimal.Decimal) (FinalPrice, error) {
	if len(prices) == 0 {
		return FinalPrice{}, fmt.Errorf("product has no price")
	}

	defaultIdx := 0
	for i, p := range prices {
		if p.DefaultPrice {
			defaultIdx = i
			break
		}
	}

	extra := decimal.Zero
	for _, a := range adjustments {
		extra = extra.Add(a)
	}

	fp := c.FinalPrice(prices[defaultIdx])
	fp.FinalPrice = fp.FinalPrice.Add(extra)
	fp.OriginalPrice = fp.OriginalPrice.Add(extra)
	if fp.DiscountedPrice != nil {
		d := fp.DiscountedPrice.Add(extra)
		fp.DiscountedPrice = &d
	}

	for i, p := range prices {
		if i == defaultIdx {
			continue
		}
		fp.AdditionalPrices = append(fp.AdditionalPrices, c.FinalPrice(p))
	}
	return fp, nil
}

func (c *Calculator) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// discountActive applies the special-price window rules. A start date
// without an end date never activates the special amount.
// TODO: confirm the start-only window with merchandising before changing it.
func discountActive(price ProductPrice, now time.Time) bool {
	if price.SpecialAmount == nil {
		return false
	}
	start, end := price.SpecialStart, price.SpecialEnd

	if start == nil && end == nil {
		return price.SpecialAmount.IsPositive()
	}
	if start != nil {
		return start.Before(now) && end != nil && end.After(now)
	}
	return end.After(now)
}

// discountPercent truncates toward zero, 25.9 becomes 25.
func discountPercent(original, special decimal.Decimal) int {
	if original.IsZero() {
		return 0
	}
	ratio := special.Div(original).Mul(hundred)
	return int(hundred.Sub(ratio).IntPart())
}

// ParseAmount parses a user-entered amount such as "1,234.50" or "12".
func ParseAmount(text string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return d, nil
}
