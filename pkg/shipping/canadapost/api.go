package canadapost

import (
	"context"
)

// APIClient is the part of the Canada Post rating API the module uses.
// The HTTP implementation talks to the real service; the mock serves tests
// and offline runs.
type APIClient interface {
	// GetRates fetches rates for one parcel.
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
}

// RatesRequest represents a Canada Post rate quote request.
type RatesRequest struct {
	CustomerNumber string
	ContractID     string
	Weight         float64 // kg
	Dimensions     Dimensions
	OriginPostal   string
	Destination    Destination
}

// Dimensions represents package dimensions in cm.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Destination is exactly one of the three destination kinds.
type Destination struct {
	Domestic      *DomesticDestination
	UnitedStates  *UnitedStatesDestination
	International *InternationalDestination
}

// DomesticDestination for Canadian addresses.
type DomesticDestination struct {
	PostalCode string
}

// UnitedStatesDestination for US addresses.
type UnitedStatesDestination struct {
	ZipCode string
}

// InternationalDestination for other countries.
type InternationalDestination struct {
	CountryCode string
}

// RatesResponse represents the Canada Post rate quote response.
type RatesResponse struct {
	Rates []Rate
}

// Rate represents a single service rate.
type Rate struct {
	ServiceCode        string
	ServiceName        string
	BaseRate           float64
	FuelSurcharge      float64
	Taxes              float64
	TotalPrice         float64
	ExpectedTransit    int
	ExpectedDelivery   string
	GuaranteedDelivery bool
}

// APIError represents an error from the Canada Post API.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Description
}

// Retryable reports whether the call may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
