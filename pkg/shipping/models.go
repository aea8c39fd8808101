package shipping

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShippingType restricts where a store ships to.
type ShippingType string

const (
	ShippingNational      ShippingType = "NATIONAL"
	ShippingInternational ShippingType = "INTERNATIONAL"
)

// FreeShippingScope restricts where free shipping applies.
type FreeShippingScope string

const (
	FreeShippingNational FreeShippingScope = "NATIONAL"
	FreeShippingAll      FreeShippingScope = "ALL"
)

// PackageStrategy selects how line items are grouped into packages.
type PackageStrategy string

const (
	PackageByItem PackageStrategy = "BY_ITEM"
	PackageByBox  PackageStrategy = "BY_BOX"
)

// SelectionPolicy selects which quoted options are kept.
type SelectionPolicy string

const (
	SelectCheapest      SelectionPolicy = "CHEAPEST"
	SelectMostExpensive SelectionPolicy = "MOST_EXPENSIVE"
	SelectAll           SelectionPolicy = "ALL"
)

// ShippingBasis tells which customer address is used for shipping.
type ShippingBasis string

const (
	BasisShipping ShippingBasis = "SHIPPING"
	BasisBilling  ShippingBasis = "BILLING"
)

// ReasonCode explains why a quote carries no priced options.
type ReasonCode string

const (
	ReasonNoPostalCode        ReasonCode = "NO_POSTAL_CODE"
	ReasonNoShippingToCountry ReasonCode = "NO_SHIPPING_TO_SELECTED_COUNTRY"
	ReasonNoModuleConfigured  ReasonCode = "NO_SHIPPING_MODULE_CONFIGURED"
)

// Information keys set on a quote by processors.
const (
	InfoDistance = "distance"
)

// Address represents a shipping address.
type Address struct {
	Name         string
	Company      string
	Line1        string
	Line2        string
	City         string
	ProvinceCode string // e.g., "ON", "QC", "BC"
	PostalCode   string
	CountryCode  string // ISO 3166-1 alpha-2, e.g., "CA", "US"
	Phone        string
	Latitude     *float64
	Longitude    *float64
}

// HasCoordinates reports whether the address is geolocated.
func (a Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Store is the merchant store a quote is computed for.
type Store struct {
	Code                   string
	Name                   string
	Address                Address
	Currency               string // ISO 4217
	DefaultLanguage        string // BCP 47
	CurrencyFormatNational bool
}

// ShippingOrigin is the address shipments leave from.
type ShippingOrigin struct {
	Active  bool
	Address Address
}

// LineItem is a cart product considered for shipping.
type LineItem struct {
	SKU        string
	Quantity   int
	FinalPrice decimal.Decimal // unit price after discounts
	Weight     float64
	Length     float64
	Width      float64
	Height     float64
	Shippable  bool
}

// PackageDetails describes a physical package.
type PackageDetails struct {
	ID            string
	Length        float64
	Width         float64
	Height        float64
	Weight        float64
	DeclaredValue decimal.Decimal
	ItemCount     int
	Description   string
}

// MerchantShippingConfiguration holds per-store shipping settings.
type MerchantShippingConfiguration struct {
	ShippingType          ShippingType      `json:"shippingType" yaml:"shippingType" validate:"required,oneof=NATIONAL INTERNATIONAL"`
	ShipToCountries       []string          `json:"shipToCountries,omitempty" yaml:"shipToCountries" validate:"dive,len=2"`
	ShippingBasis         ShippingBasis     `json:"shippingBasis,omitempty" yaml:"shippingBasis" validate:"omitempty,oneof=SHIPPING BILLING"`
	FreeShippingEnabled   bool              `json:"freeShippingEnabled" yaml:"freeShippingEnabled"`
	FreeShippingThreshold decimal.Decimal   `json:"freeShippingThreshold" yaml:"freeShippingThreshold"`
	FreeShippingScope     FreeShippingScope `json:"freeShippingScope,omitempty" yaml:"freeShippingScope" validate:"omitempty,oneof=NATIONAL ALL"`
	HandlingFee           decimal.Decimal   `json:"handlingFee" yaml:"handlingFee"`
	TaxOnShipping         bool              `json:"taxOnShipping" yaml:"taxOnShipping"`
	PackageStrategy       PackageStrategy   `json:"packageStrategy" yaml:"packageStrategy" validate:"required,oneof=BY_ITEM BY_BOX"`
	BoxLength             float64           `json:"boxLength,omitempty" yaml:"boxLength" validate:"gte=0"`
	BoxWidth              float64           `json:"boxWidth,omitempty" yaml:"boxWidth" validate:"gte=0"`
	BoxHeight             float64           `json:"boxHeight,omitempty" yaml:"boxHeight" validate:"gte=0"`
	BoxMaxWeight          float64           `json:"boxMaxWeight,omitempty" yaml:"boxMaxWeight" validate:"gte=0"`
	SelectionPolicy       SelectionPolicy   `json:"selectionPolicy" yaml:"selectionPolicy" validate:"required,oneof=CHEAPEST MOST_EXPENSIVE ALL"`
}

// DefaultShippingConfiguration is used when a store has none saved.
func DefaultShippingConfiguration() MerchantShippingConfiguration {
	return MerchantShippingConfiguration{
		ShippingType:      ShippingNational,
		ShippingBasis:     BasisShipping,
		FreeShippingScope: FreeShippingNational,
		PackageStrategy:   PackageByItem,
		SelectionPolicy:   SelectCheapest,
	}
}

// ShipsTo reports whether the allow-list contains the country.
func (c MerchantShippingConfiguration) ShipsTo(countryCode string) bool {
	for _, code := range c.ShipToCountries {
		if strings.EqualFold(code, countryCode) {
			return true
		}
	}
	return false
}

// ModuleConfiguration holds a store's settings for one module.
type ModuleConfiguration struct {
	ModuleCode         string              `json:"moduleCode" yaml:"moduleCode" validate:"required"`
	Active             bool                `json:"active" yaml:"active"`
	Priority           int                 `json:"priority" yaml:"priority"`
	Environment        string              `json:"environment,omitempty" yaml:"environment" validate:"omitempty,oneof=TEST PRODUCTION"`
	IntegrationKeys    map[string]string   `json:"integrationKeys,omitempty" yaml:"integrationKeys"`
	IntegrationOptions map[string][]string `json:"integrationOptions,omitempty" yaml:"integrationOptions"`
}

// Key returns an integration key or the fallback.
func (m *ModuleConfiguration) Key(name, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m.IntegrationKeys[name]; ok && v != "" {
		return v
	}
	return fallback
}

// IntegrationModule is the metadata describing a registered module.
type IntegrationModule struct {
	Code    string
	Name    string
	Regions []string // ISO country codes, "*" for all
	Custom  bool
}

// SupportsCountry reports whether the module serves the country.
func (m IntegrationModule) SupportsCountry(countryCode string) bool {
	if len(m.Regions) == 0 {
		return true
	}
	for _, r := range m.Regions {
		if r == "*" || strings.EqualFold(r, countryCode) {
			return true
		}
	}
	return false
}

// ShippingOption is a priced shipping choice.
type ShippingOption struct {
	OptionID      string
	OptionCode    string
	OptionName    string
	Description   string
	ModuleCode    string
	Price         decimal.Decimal
	PriceText     string
	EstimatedDays int
	DeliveryDate  *time.Time
	QuoteID       string // set once persisted
}

// ShippingQuote is the result of one quote computation.
type ShippingQuote struct {
	CurrentModule      string
	Options            []ShippingOption
	SelectedOption     *ShippingOption
	FreeShipping       bool
	FreeShippingAmount decimal.Decimal
	HandlingFee        decimal.Decimal
	TaxOnShipping      bool
	Reason             ReasonCode
	ReasonCountry      string
	Warnings           []ReasonCode
	Informations       map[string]any
	Delivery           Address
	Origin             Address
}

// Eligible reports whether the quote carries no terminal reason.
func (q *ShippingQuote) Eligible() bool {
	return q.Reason == ""
}

// HasWarning reports whether the warning was recorded.
func (q *ShippingQuote) HasWarning(code ReasonCode) bool {
	for _, w := range q.Warnings {
		if w == code {
			return true
		}
	}
	return false
}

// Distance returns the distance computed by a pre-processor, in km.
func (q *ShippingQuote) Distance() (float64, bool) {
	if q.Informations == nil {
		return 0, false
	}
	d, ok := q.Informations[InfoDistance].(float64)
	return d, ok
}

// Quote is the persisted record of a finalized option.
type Quote struct {
	ID            string
	CartID        string
	StoreCode     string
	CustomerID    string
	ModuleCode    string
	OptionCode    string
	OptionName    string
	Price         decimal.Decimal
	HandlingFee   decimal.Decimal
	FreeShipping  bool
	TaxOnShipping bool
	EstimatedDays int
	DeliveryDate  *time.Time
	Delivery      Address
	IPAddress     string
	QuoteDate     time.Time
}

// ShippingSummary is what an order records about its shipping.
type ShippingSummary struct {
	ModuleCode    string
	OptionName    string
	Shipping      decimal.Decimal
	HandlingFee   decimal.Decimal
	Total         decimal.Decimal
	TaxOnShipping bool
	FreeShipping  bool
	Delivery      Address
}
