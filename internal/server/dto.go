package server

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/internal/pricing"
	"github.com/tournevent/shipquote/pkg/shipping"
)

type addressDTO struct {
	Name         string   `json:"name,omitempty"`
	Company      string   `json:"company,omitempty"`
	Line1        string   `json:"line1,omitempty"`
	Line2        string   `json:"line2,omitempty"`
	City         string   `json:"city,omitempty"`
	ProvinceCode string   `json:"provinceCode,omitempty"`
	PostalCode   string   `json:"postalCode,omitempty"`
	CountryCode  string   `json:"countryCode" validate:"required,len=2"`
	Phone        string   `json:"phone,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

func (a addressDTO) address() shipping.Address {
	return shipping.Address(a)
}

func toAddressDTO(a shipping.Address) addressDTO {
	return addressDTO(a)
}

type priceDTO struct {
	Code          string     `json:"code,omitempty"`
	Amount        string     `json:"amount" validate:"required"`
	SpecialAmount string     `json:"specialAmount,omitempty"`
	SpecialStart  *time.Time `json:"specialStart,omitempty"`
	SpecialEnd    *time.Time `json:"specialEnd,omitempty"`
	Default       bool       `json:"default,omitempty"`
}

func (p priceDTO) productPrice() (pricing.ProductPrice, error) {
	amount, err := pricing.ParseAmount(p.Amount)
	if err != nil {
		return pricing.ProductPrice{}, err
	}
	price := pricing.ProductPrice{
		Code:         p.Code,
		Amount:       amount,
		SpecialStart: p.SpecialStart,
		SpecialEnd:   p.SpecialEnd,
		DefaultPrice: p.Default,
	}
	if p.SpecialAmount != "" {
		special, err := pricing.ParseAmount(p.SpecialAmount)
		if err != nil {
			return pricing.ProductPrice{}, err
		}
		price.SpecialAmount = &special
	}
	return price, nil
}

type lineItemDTO struct {
	SKU       string     `json:"sku" validate:"required"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
	Prices    []priceDTO `json:"prices" validate:"required,min=1,dive"`
	Weight    float64    `json:"weight" validate:"gte=0"`
	Length    float64    `json:"length" validate:"gte=0"`
	Width     float64    `json:"width" validate:"gte=0"`
	Height    float64    `json:"height" validate:"gte=0"`
	Shippable *bool      `json:"shippable,omitempty"`
}

type quoteRequestDTO struct {
	CartID     string        `json:"cartId" validate:"required"`
	CustomerID string        `json:"customerId,omitempty"`
	Locale     string        `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	Delivery   addressDTO    `json:"delivery" validate:"required"`
	Items      []lineItemDTO `json:"items" validate:"required,min=1,dive"`
}

// lineItems resolves each item's unit price from its price records.
func (s *Server) lineItems(items []lineItemDTO) ([]shipping.LineItem, error) {
	result := make([]shipping.LineItem, 0, len(items))
	for _, it := range items {
		prices := make([]pricing.ProductPrice, 0, len(it.Prices))
		for _, p := range it.Prices {
			price, err := p.productPrice()
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", it.SKU, err)
			}
			prices = append(prices, price)
		}
		final, err := s.calculator.ProductFinalPrice(prices)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.SKU, err)
		}
		shippable := true
		if it.Shippable != nil {
			shippable = *it.Shippable
		}
		result = append(result, shipping.LineItem{
			SKU:        it.SKU,
			Quantity:   it.Quantity,
			FinalPrice: final.FinalPrice,
			Weight:     it.Weight,
			Length:     it.Length,
			Width:      it.Width,
			Height:     it.Height,
			Shippable:  shippable,
		})
	}
	return result, nil
}

type optionDTO struct {
	ID            string          `json:"id"`
	Code          string          `json:"code,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Module        string          `json:"module"`
	Price         decimal.Decimal `json:"price"`
	PriceText     string          `json:"priceText,omitempty"`
	EstimatedDays int             `json:"estimatedDays,omitempty"`
	DeliveryDate  *time.Time      `json:"deliveryDate,omitempty"`
	QuoteID       string          `json:"quoteId,omitempty"`
}

func toOptionDTO(o shipping.ShippingOption) optionDTO {
	return optionDTO{
		ID:            o.OptionID,
		Code:          o.OptionCode,
		Name:          o.OptionName,
		Description:   o.Description,
		Module:        o.ModuleCode,
		Price:         o.Price,
		PriceText:     o.PriceText,
		EstimatedDays: o.EstimatedDays,
		DeliveryDate:  o.DeliveryDate,
		QuoteID:       o.QuoteID,
	}
}

type summaryDTO struct {
	Module      string          `json:"module"`
	OptionName  string          `json:"optionName,omitempty"`
	Shipping    decimal.Decimal `json:"shipping"`
	HandlingFee decimal.Decimal `json:"handlingFee"`
	Total       decimal.Decimal `json:"total"`
}

type quoteResponseDTO struct {
	Module             string          `json:"module,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	ReasonCountry      string          `json:"reasonCountry,omitempty"`
	Warnings           []string        `json:"warnings,omitempty"`
	FreeShipping       bool            `json:"freeShipping"`
	FreeShippingAmount decimal.Decimal `json:"freeShippingAmount"`
	HandlingFee        decimal.Decimal `json:"handlingFee"`
	TaxOnShipping      bool            `json:"taxOnShipping"`
	Options            []optionDTO     `json:"options"`
	SelectedOptionID   string          `json:"selectedOptionId,omitempty"`
	Delivery           addressDTO      `json:"delivery"`
	Summary            *summaryDTO     `json:"summary,omitempty"`
}

func toQuoteResponse(q *shipping.ShippingQuote, summary *shipping.ShippingSummary) quoteResponseDTO {
	resp := quoteResponseDTO{
		Module:             q.CurrentModule,
		Reason:             string(q.Reason),
		ReasonCountry:      q.ReasonCountry,
		FreeShipping:       q.FreeShipping,
		FreeShippingAmount: q.FreeShippingAmount,
		HandlingFee:        q.HandlingFee,
		TaxOnShipping:      q.TaxOnShipping,
		Options:            make([]optionDTO, 0, len(q.Options)),
		Delivery:           toAddressDTO(q.Delivery),
	}
	for _, w := range q.Warnings {
		resp.Warnings = append(resp.Warnings, string(w))
	}
	for _, o := range q.Options {
		resp.Options = append(resp.Options, toOptionDTO(o))
	}
	if q.SelectedOption != nil {
		resp.SelectedOptionID = q.SelectedOption.OptionID
	}
	if summary != nil {
		resp.Summary = &summaryDTO{
			Module:      summary.ModuleCode,
			OptionName:  summary.OptionName,
			Shipping:    summary.Shipping,
			HandlingFee: summary.HandlingFee,
			Total:       summary.Total,
		}
	}
	return resp
}

type countryDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type moduleDTO struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Regions []string `json:"regions,omitempty"`
	Custom  bool     `json:"custom"`
}

type moduleConfigurationDTO struct {
	Active             bool                `json:"active"`
	Priority           int                 `json:"priority"`
	Environment        string              `json:"environment,omitempty"`
	IntegrationKeys    map[string]string   `json:"integrationKeys,omitempty"`
	IntegrationOptions map[string][]string `json:"integrationOptions,omitempty"`
}

type errorDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
