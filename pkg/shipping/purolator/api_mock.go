package purolator

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	// DiscardRequests stops recording requests, for long-lived mocks.
	DiscardRequests bool

	OnGetRates func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	mu       sync.Mutex
	requests []*RatesRequest
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Requests returns the rate requests received so far.
func (m *MockAPIClient) Requests() []*RatesRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*RatesRequest(nil), m.requests...)
}

// GetRates returns mock estimates. US receivers get the U.S. services.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	if !m.DiscardRequests {
		m.mu.Lock()
		m.requests = append(m.requests, req)
		m.mu.Unlock()
	}

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{Status: 503, Code: "MOCK_ERROR", Description: "Simulated API error"}
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	if req.Receiver.Country == "US" {
		return &RatesResponse{Estimates: []Estimate{
			mockEstimate("PurolatorGroundUS", "24.10", "2.89", "0", "26.99", 6),
			mockEstimate("PurolatorExpressUS", "41.25", "4.95", "0", "46.20", 3),
		}}, nil
	}

	return &RatesResponse{Estimates: []Estimate{
		mockEstimate("PurolatorGround", "16.75", "2.01", "2.44", "21.20", 5),
		mockEstimate("PurolatorExpress", "28.50", "3.42", "4.15", "36.07", 2),
		mockEstimate("PurolatorExpress9AM", "45.00", "5.40", "6.55", "56.95", 1),
	}}, nil
}

func mockEstimate(service, base, fuel, taxes, total string, days int) Estimate {
	return Estimate{
		ServiceID:            service,
		BasePrice:            decimal.RequireFromString(base),
		FuelSurcharge:        decimal.RequireFromString(fuel),
		Taxes:                decimal.RequireFromString(taxes),
		TotalPrice:           decimal.RequireFromString(total),
		EstimatedTransitDays: days,
	}
}

var _ APIClient = (*MockAPIClient)(nil)
