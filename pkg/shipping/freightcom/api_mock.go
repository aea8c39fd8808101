package freightcom

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
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

// GetRates returns mock rates from two carriers.
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
		return nil, &APIError{Status: 503, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return &RatesResponse{
		RequestID: "fc-req-" + uuid.NewString()[:8],
		Status:    "complete",
		Rates: []Rate{
			mockRate("fedex.ground", "FedEx", "FedEx Ground", "20.24", 3, false),
			mockRate("fedex.express-saver", "FedEx", "FedEx Express Saver", "36.69", 2, true),
			mockRate("ups.standard", "UPS", "UPS Standard", "22.10", 4, false),
		},
	}, nil
}

func mockRate(id, carrier, service, total string, days int, guaranteed bool) Rate {
	return Rate{
		ServiceID:   id,
		CarrierName: carrier,
		ServiceName: service,
		TotalPrice:  decimal.RequireFromString(total),
		Currency:    "CAD",
		TransitDays: days,
		Guaranteed:  guaranteed,
	}
}

var _ APIClient = (*MockAPIClient)(nil)
