package canadapost

import (
	"context"
	"sync"
	"time"
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

// GetRates returns mock shipping rates.
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

	if req.Destination.Domestic == nil {
		return &RatesResponse{
			Rates: []Rate{
				{ServiceCode: "INT.XP", ServiceName: "Xpresspost International", TotalPrice: 48.75, ExpectedTransit: 6},
				{ServiceCode: "INT.SP.AIR", ServiceName: "Small Packet International Air", TotalPrice: 22.40, ExpectedTransit: 10},
			},
		}, nil
	}

	return &RatesResponse{
		Rates: []Rate{
			{
				ServiceCode:     "DOM.RP",
				ServiceName:     "Regular Parcel",
				BaseRate:        9.99,
				FuelSurcharge:   1.20,
				Taxes:           1.46,
				TotalPrice:      12.65,
				ExpectedTransit: 5,
			},
			{
				ServiceCode:        "DOM.XP",
				ServiceName:        "Xpresspost",
				BaseRate:           19.99,
				FuelSurcharge:      2.40,
				Taxes:              2.91,
				TotalPrice:         25.30,
				ExpectedTransit:    2,
				GuaranteedDelivery: true,
			},
			{
				ServiceCode:        "DOM.PC",
				ServiceName:        "Priority",
				BaseRate:           34.99,
				FuelSurcharge:      4.20,
				Taxes:              5.10,
				TotalPrice:         44.29,
				ExpectedTransit:    1,
				GuaranteedDelivery: true,
			},
		},
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
