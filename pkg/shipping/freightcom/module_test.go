package freightcom_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/freightcom"
)

func quoteContext(country, postal string, weights ...float64) *shipping.QuoteContext {
	pkgs := make([]shipping.PackageDetails, 0, len(weights))
	for _, w := range weights {
		pkgs = append(pkgs, shipping.PackageDetails{Weight: w, Length: 30, Width: 20, Height: 10})
	}
	return &shipping.QuoteContext{
		Quote:    &shipping.ShippingQuote{},
		Packages: pkgs,
		Store:    shipping.Store{Code: "DEFAULT", Currency: "CAD"},
		Origin: shipping.ShippingOrigin{Active: true, Address: shipping.Address{
			City: "Laval", ProvinceCode: "QC", PostalCode: "h7t 2p5", CountryCode: "CA",
		}},
		Delivery:     shipping.Address{City: "Toronto", ProvinceCode: "ON", PostalCode: postal, CountryCode: country},
		ModuleConfig: &shipping.ModuleConfiguration{ModuleCode: freightcom.Code, Active: true},
	}
}

func TestModule_GetShippingQuotes(t *testing.T) {
	api := freightcom.NewMockAPIClient()
	m := freightcom.NewWithAPIClient(freightcom.Config{}, api, nil, nil)

	options, err := m.GetShippingQuotes(context.Background(), quoteContext("CA", "M5V 1A1", 2, 4))

	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, "fedex.ground", options[0].OptionCode)
	assert.Equal(t, "FedEx Ground", options[0].OptionName)
	assert.True(t, options[0].Price.Equal(decimal.RequireFromString("20.24")))
	assert.Equal(t, "ups.standard", options[1].OptionCode)
	assert.Equal(t, "FedEx (guaranteed)", options[2].Description)

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "H7T 2P5", reqs[0].Details.Origin.PostalCode)
	assert.True(t, reqs[0].Details.Destination.Residential)
	assert.Len(t, reqs[0].Details.Packaging.Packages, 2)
}

func TestModule_GetShippingQuotes_ServiceOptions(t *testing.T) {
	api := freightcom.NewMockAPIClient()
	qc := quoteContext("US", "10001", 1)
	qc.ModuleConfig.IntegrationOptions = map[string][]string{
		freightcom.OptionServices:         {"fedex.ground", " "},
		freightcom.OptionExcludedServices: {"ups.standard"},
	}

	_, err := freightcom.NewWithAPIClient(freightcom.Config{}, api, nil, nil).GetShippingQuotes(context.Background(), qc)

	require.NoError(t, err)
	req := api.Requests()[0]
	assert.Equal(t, []string{"fedex.ground"}, req.Services)
	assert.Equal(t, []string{"ups.standard"}, req.ExcludedServices)
}

func TestModule_GetShippingQuotes_SkipsOtherCurrencies(t *testing.T) {
	api := freightcom.NewMockAPIClient()
	api.OnGetRates = func(ctx context.Context, req *freightcom.RatesRequest) (*freightcom.RatesResponse, error) {
		return &freightcom.RatesResponse{Status: "complete", Rates: []freightcom.Rate{
			{ServiceID: "a", ServiceName: "A", TotalPrice: decimal.NewFromInt(10), Currency: "USD"},
			{ServiceID: "b", ServiceName: "B", TotalPrice: decimal.NewFromInt(12), Currency: "cad"},
		}}, nil
	}

	options, err := freightcom.NewWithAPIClient(freightcom.Config{}, api, nil, nil).
		GetShippingQuotes(context.Background(), quoteContext("CA", "M5V1A1", 1))

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "b", options[0].OptionCode)
}

func TestModule_GetShippingQuotes_NoPostalCode(t *testing.T) {
	api := freightcom.NewMockAPIClient()

	options, err := freightcom.NewWithAPIClient(freightcom.Config{}, api, nil, nil).
		GetShippingQuotes(context.Background(), quoteContext("CA", "", 1))

	require.NoError(t, err)
	assert.Empty(t, options)
	assert.Empty(t, api.Requests())
}

func TestModule_GetShippingQuotes_APIError(t *testing.T) {
	api := freightcom.NewMockAPIClient()
	api.SimulateErrors = true

	_, err := freightcom.NewWithAPIClient(freightcom.Config{}, api, nil, nil).
		GetShippingQuotes(context.Background(), quoteContext("CA", "M5V1A1", 1))

	var modErr *shipping.ModuleError
	require.True(t, errors.As(err, &modErr))
	assert.Equal(t, freightcom.Code, modErr.Module)
	assert.True(t, shipping.IsRetryable(err))
}

func TestHTTPAPIClient_GetRates_Polls(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rate":
			var req freightcom.RatesRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "CA", req.Details.Origin.Country)
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"request_id":"r-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/rate/r-1":
			if polls.Add(1) < 3 {
				_, _ = io.WriteString(w, `{"request_id":"r-1","status":"pending"}`)
				return
			}
			_, _ = io.WriteString(w, `{"request_id":"r-1","status":"complete","rates":[`+
				`{"service_id":"ups.standard","carrier_name":"UPS","service_name":"UPS Standard","total_price":"22.10","currency":"CAD","transit_days":4}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := freightcom.NewHTTPAPIClient(freightcom.HTTPAPIClientConfig{
		BaseURL: srv.URL, APIKey: "secret", PollInterval: time.Millisecond,
	})
	resp, err := client.GetRates(context.Background(), &freightcom.RatesRequest{
		Details: freightcom.ShippingDetails{Origin: freightcom.Location{Country: "CA"}},
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), polls.Load())
	require.Len(t, resp.Rates, 1)
	assert.True(t, resp.Rates[0].TotalPrice.Equal(decimal.RequireFromString("22.10")))
}

func TestHTTPAPIClient_GetRates_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"request_id":"r-2"}`)
			return
		}
		_, _ = io.WriteString(w, `{"request_id":"r-2","status":"pending"}`)
	}))
	defer srv.Close()

	client := freightcom.NewHTTPAPIClient(freightcom.HTTPAPIClientConfig{
		BaseURL: srv.URL, PollInterval: 5 * time.Millisecond, PollTimeout: 30 * time.Millisecond,
	})
	_, err := client.GetRates(context.Background(), &freightcom.RatesRequest{})

	var apiErr *freightcom.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "TIMEOUT", apiErr.Code)
	assert.True(t, apiErr.Retryable())
}

func TestHTTPAPIClient_GetRates_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"invalid api key"}`)
	}))
	defer srv.Close()

	_, err := freightcom.NewHTTPAPIClient(freightcom.HTTPAPIClientConfig{BaseURL: srv.URL}).
		GetRates(context.Background(), &freightcom.RatesRequest{})

	var apiErr *freightcom.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP_401", apiErr.Code)
	assert.Equal(t, "invalid api key", apiErr.Message)
	assert.False(t, apiErr.Retryable())
}

func TestModule_ValidateConfiguration(t *testing.T) {
	store := shipping.Store{Code: "DEFAULT"}
	m := freightcom.New(freightcom.Config{}, nil, nil)

	assert.Error(t, m.ValidateConfiguration(shipping.ModuleConfiguration{ModuleCode: freightcom.Code}, store))
	assert.NoError(t, m.ValidateConfiguration(shipping.ModuleConfiguration{
		ModuleCode:      freightcom.Code,
		IntegrationKeys: map[string]string{freightcom.KeyAPIKey: "secret"},
	}, store))
	assert.NoError(t, freightcom.New(freightcom.Config{APIKey: "env"}, nil, nil).
		ValidateConfiguration(shipping.ModuleConfiguration{ModuleCode: freightcom.Code}, store))
}
