// Package storage persists stores, merchant configuration, shipping origins
// and quotes with gorm, and loads the same data from YAML files.
package storage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Merchant configuration keys.
const (
	KeyShippingConfig  = "SHIPPING_CONFIG"
	KeyShippingModules = "SHIPPING_MODULES"
)

// AddressColumns is an address embedded in a table.
type AddressColumns struct {
	Name         string   `gorm:"column:name"`
	Company      string   `gorm:"column:company"`
	Line1        string   `gorm:"column:line1"`
	Line2        string   `gorm:"column:line2"`
	City         string   `gorm:"column:city"`
	ProvinceCode string   `gorm:"column:province_code"`
	PostalCode   string   `gorm:"column:postal_code"`
	CountryCode  string   `gorm:"column:country_code;size:2"`
	Phone        string   `gorm:"column:phone"`
	Latitude     *float64 `gorm:"column:latitude"`
	Longitude    *float64 `gorm:"column:longitude"`
}

func (a AddressColumns) toAddress() shipping.Address {
	a.CountryCode = normalizeCountry(a.CountryCode)
	return shipping.Address(a)
}

func addressColumns(a shipping.Address) AddressColumns {
	a.CountryCode = normalizeCountry(a.CountryCode)
	return AddressColumns(a)
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StoreRecord is a merchant store.
type StoreRecord struct {
	Code                   string         `gorm:"column:code;primaryKey;size:64"`
	Name                   string         `gorm:"column:name;not null"`
	Currency               string         `gorm:"column:currency;size:3;not null"`
	DefaultLanguage        string         `gorm:"column:default_language;size:16"`
	CurrencyFormatNational bool           `gorm:"column:currency_format_national;not null;default:false"`
	Address                AddressColumns `gorm:"embedded;embeddedPrefix:address_"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (StoreRecord) TableName() string { return "stores" }

func (r StoreRecord) toStore() shipping.Store {
	return shipping.Store{
		Code:                   r.Code,
		Name:                   r.Name,
		Address:                r.Address.toAddress(),
		Currency:               r.Currency,
		DefaultLanguage:        r.DefaultLanguage,
		CurrencyFormatNational: r.CurrencyFormatNational,
	}
}

func storeRecord(s shipping.Store) StoreRecord {
	return StoreRecord{
		Code:                   s.Code,
		Name:                   s.Name,
		Currency:               s.Currency,
		DefaultLanguage:        s.DefaultLanguage,
		CurrencyFormatNational: s.CurrencyFormatNational,
		Address:                addressColumns(s.Address),
	}
}

// MerchantConfigurationRecord is a JSON document stored per store and key.
type MerchantConfigurationRecord struct {
	StoreCode string    `gorm:"column:store_code;primaryKey;size:64"`
	Key       string    `gorm:"column:config_key;primaryKey;size:64"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (MerchantConfigurationRecord) TableName() string { return "merchant_configurations" }

// ShippingOriginRecord overrides where a store ships from.
type ShippingOriginRecord struct {
	StoreCode string         `gorm:"column:store_code;primaryKey;size:64"`
	Active    bool           `gorm:"column:active;not null;default:false"`
	Address   AddressColumns `gorm:"embedded;embeddedPrefix:origin_"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (ShippingOriginRecord) TableName() string { return "shipping_origins" }

// QuoteRecord is a persisted shipping option.
type QuoteRecord struct {
	ID            string          `gorm:"column:id;primaryKey;size:36"`
	CartID        string          `gorm:"column:cart_id;index;size:64"`
	StoreCode     string          `gorm:"column:store_code;index;size:64;not null"`
	CustomerID    string          `gorm:"column:customer_id;size:64"`
	ModuleCode    string          `gorm:"column:module_code;size:64;not null"`
	OptionCode    string          `gorm:"column:option_code;size:64"`
	OptionName    string          `gorm:"column:option_name"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	HandlingFee   decimal.Decimal `gorm:"column:handling_fee;type:numeric(12,2);not null"`
	FreeShipping  bool            `gorm:"column:free_shipping;not null;default:false"`
	TaxOnShipping bool            `gorm:"column:tax_on_shipping;not null;default:false"`
	EstimatedDays int             `gorm:"column:estimated_days"`
	DeliveryDate  *time.Time      `gorm:"column:delivery_date"`
	Delivery      AddressColumns  `gorm:"embedded;embeddedPrefix:delivery_"`
	IPAddress     string          `gorm:"column:ip_address;size:45"`
	QuoteDate     time.Time       `gorm:"column:quote_date;not null"`
}

// TableName sets the table name.
func (QuoteRecord) TableName() string { return "shipping_quotes" }

func (r QuoteRecord) toQuote() shipping.Quote {
	return shipping.Quote{
		ID:            r.ID,
		CartID:        r.CartID,
		StoreCode:     r.StoreCode,
		CustomerID:    r.CustomerID,
		ModuleCode:    r.ModuleCode,
		OptionCode:    r.OptionCode,
		OptionName:    r.OptionName,
		Price:         r.Price,
		HandlingFee:   r.HandlingFee,
		FreeShipping:  r.FreeShipping,
		TaxOnShipping: r.TaxOnShipping,
		EstimatedDays: r.EstimatedDays,
		DeliveryDate:  r.DeliveryDate,
		Delivery:      r.Delivery.toAddress(),
		IPAddress:     r.IPAddress,
		QuoteDate:     r.QuoteDate,
	}
}
