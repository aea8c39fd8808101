package freightcom

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// APIClient is the part of the Freightcom REST API the module uses.
type APIClient interface {
	// GetRates submits a rate request and waits for its result.
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
}

// RatesRequest is the body of POST /rate.
type RatesRequest struct {
	Services         []string        `json:"services,omitempty"`
	ExcludedServices []string        `json:"excluded_services,omitempty"`
	Details          ShippingDetails `json:"details"`
}

// ShippingDetails describes the shipment to rate.
type ShippingDetails struct {
	Origin      Location      `json:"origin"`
	Destination Location      `json:"destination"`
	Packaging   PackagingInfo `json:"packaging"`
}

// Location is an origin or destination address.
type Location struct {
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Residential bool   `json:"residential,omitempty"`
}

// PackagingInfo lists the parcels.
type PackagingInfo struct {
	Type     string    `json:"type"`
	Packages []Package `json:"packages"`
}

// Package is one parcel, in cm and kg.
type Package struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

// rateRequestResponse is the reply to POST /rate.
type rateRequestResponse struct {
	RequestID string `json:"request_id"`
}

// RatesResponse is the reply to GET /rate/{request_id}.
type RatesResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // pending, complete or error
	Rates     []Rate `json:"rates,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Rate is one carrier service offer.
type Rate struct {
	ServiceID     string          `json:"service_id"`
	CarrierName   string          `json:"carrier_name"`
	ServiceName   string          `json:"service_name"`
	BaseRate      decimal.Decimal `json:"base_rate"`
	FuelSurcharge decimal.Decimal `json:"fuel_surcharge"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	TransitDays   int             `json:"transit_days"`
	Guaranteed    bool            `json:"guaranteed"`
}

// APIError represents an error from the Freightcom API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Retryable reports whether the call may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.Code == "TIMEOUT" || e.Status == http.StatusTooManyRequests || e.Status >= 500
}
