package purolator

import (
	"context"

	"github.com/shopspring/decimal"
)

// APIClient is the part of the Purolator estimating service the module uses.
type APIClient interface {
	// GetRates estimates every service for a whole shipment.
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
}

// RatesRequest is a GetFullEstimate request.
type RatesRequest struct {
	BillingAccountNumber string
	SenderPostalCode     string
	Receiver             Address
	TotalWeight          float64 // kg
	TotalPieces          int
}

// Address is a receiver address.
type Address struct {
	City       string
	Province   string
	PostalCode string
	Country    string
}

// RatesResponse holds one estimate per service.
type RatesResponse struct {
	Estimates []Estimate
}

// Estimate is the price of one service.
type Estimate struct {
	ServiceID            string
	BasePrice            decimal.Decimal
	FuelSurcharge        decimal.Decimal
	Taxes                decimal.Decimal
	TotalPrice           decimal.Decimal
	ExpectedDeliveryDate string
	EstimatedTransitDays int
}

// ServiceName is the display name of the estimate's service.
func (e Estimate) ServiceName() string {
	if name, ok := serviceNames[e.ServiceID]; ok {
		return name
	}
	return e.ServiceID
}

// Guaranteed reports whether the service has a delivery guarantee.
func (e Estimate) Guaranteed() bool {
	return guaranteedServices[e.ServiceID]
}

// APIError represents an error from the Purolator API.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Description
}

// Retryable reports whether the call may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

var serviceNames = map[string]string{
	"PurolatorExpress":        "Purolator Express",
	"PurolatorExpress9AM":     "Purolator Express 9AM",
	"PurolatorExpress10:30AM": "Purolator Express 10:30AM",
	"PurolatorExpress12PM":    "Purolator Express 12PM",
	"PurolatorExpressEvening": "Purolator Express Evening",
	"PurolatorGround":         "Purolator Ground",
	"PurolatorGround9AM":      "Purolator Ground 9AM",
	"PurolatorGround10:30AM":  "Purolator Ground 10:30AM",
	"PurolatorExpressUS":      "Purolator Express U.S.",
	"PurolatorExpressUSPack":  "Purolator Express U.S. Pack",
	"PurolatorGroundUS":       "Purolator Ground U.S.",
}

var guaranteedServices = map[string]bool{
	"PurolatorExpress":        true,
	"PurolatorExpress9AM":     true,
	"PurolatorExpress10:30AM": true,
	"PurolatorExpress12PM":    true,
	"PurolatorExpressEvening": true,
	"PurolatorExpressUS":      true,
}
