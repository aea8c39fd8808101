package purolator_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

func newTestModule(api purolator.APIClient) *purolator.Module {
	logger := otelzap.New(zap.NewNop())
	return purolator.NewWithAPIClient(purolator.Config{AccountNumber: "9999999999"}, api, logger, nil)
}

func quoteContext(country, postal string, weights ...float64) *shipping.QuoteContext {
	pkgs := make([]shipping.PackageDetails, 0, len(weights))
	for _, w := range weights {
		pkgs = append(pkgs, shipping.PackageDetails{Weight: w, Length: 10, Width: 10, Height: 10})
	}
	return &shipping.QuoteContext{
		Quote:    &shipping.ShippingQuote{},
		Packages: pkgs,
		Origin: shipping.ShippingOrigin{Active: true, Address: shipping.Address{
			City: "Laval", PostalCode: "h7t 2p5", CountryCode: "CA",
		}},
		Delivery:     shipping.Address{City: "Ottawa", ProvinceCode: "ON", PostalCode: postal, CountryCode: country},
		ModuleConfig: &shipping.ModuleConfiguration{ModuleCode: purolator.Code, Active: true},
	}
}

func TestModule_GetShippingQuotes_Domestic(t *testing.T) {
	api := purolator.NewMockAPIClient()

	options, err := newTestModule(api).GetShippingQuotes(context.Background(), quoteContext("CA", "K1A 0B1", 2, 3.5))

	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, "PurolatorGround", options[0].OptionCode)
	assert.Equal(t, "Purolator Ground", options[0].Description)
	assert.True(t, options[0].Price.Equal(decimal.RequireFromString("21.20")))
	assert.Equal(t, 5, options[0].EstimatedDays)
	assert.Equal(t, "Purolator Express (guaranteed)", options[1].Description)
	assert.Equal(t, "PurolatorExpress9AM", options[2].OptionCode)

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "H7T2P5", reqs[0].SenderPostalCode)
	assert.Equal(t, "K1A0B1", reqs[0].Receiver.PostalCode)
	assert.Equal(t, "9999999999", reqs[0].BillingAccountNumber)
	assert.Equal(t, 5.5, reqs[0].TotalWeight)
	assert.Equal(t, 2, reqs[0].TotalPieces)
}

func TestModule_GetShippingQuotes_US(t *testing.T) {
	options, err := newTestModule(purolator.NewMockAPIClient()).
		GetShippingQuotes(context.Background(), quoteContext("US", "10001", 1))

	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "PurolatorGroundUS", options[0].OptionCode)
	assert.Equal(t, "Purolator Ground U.S.", options[0].OptionName)
}

func TestModule_GetShippingQuotes_ServicesFilter(t *testing.T) {
	qc := quoteContext("CA", "K1A0B1", 1)
	qc.ModuleConfig.IntegrationOptions = map[string][]string{
		purolator.OptionServices: {"PurolatorExpress", " PurolatorExpress9AM"},
	}

	options, err := newTestModule(purolator.NewMockAPIClient()).GetShippingQuotes(context.Background(), qc)

	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "PurolatorExpress", options[0].OptionCode)
	assert.Equal(t, "PurolatorExpress9AM", options[1].OptionCode)
}

func TestModule_GetShippingQuotes_MissingOrigin(t *testing.T) {
	qc := quoteContext("CA", "K1A0B1", 1)
	qc.Origin.Address.PostalCode = ""

	_, err := newTestModule(purolator.NewMockAPIClient()).GetShippingQuotes(context.Background(), qc)

	require.Error(t, err)
	var modErr *shipping.ModuleError
	require.ErrorAs(t, err, &modErr)
	assert.Equal(t, "MISSING_ORIGIN", modErr.Code)
}

func TestModule_GetShippingQuotes_NoPostalCode(t *testing.T) {
	api := purolator.NewMockAPIClient()

	options, err := newTestModule(api).GetShippingQuotes(context.Background(), quoteContext("CA", "", 1))

	require.NoError(t, err)
	assert.Empty(t, options)
	assert.Empty(t, api.Requests())
}

func TestModule_GetShippingQuotes_APIError(t *testing.T) {
	api := purolator.NewMockAPIClient()
	api.SimulateErrors = true

	_, err := newTestModule(api).GetShippingQuotes(context.Background(), quoteContext("CA", "K1A0B1", 1))

	var modErr *shipping.ModuleError
	require.True(t, errors.As(err, &modErr))
	assert.Equal(t, "MOCK_ERROR", modErr.Code)
	assert.True(t, shipping.IsRetryable(err))
}

const estimateXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <GetFullEstimateResponse xmlns="http://purolator.com/pws/datatypes/v2">
      <ResponseInformation><Errors/></ResponseInformation>
      <ShipmentEstimates>
        <ShipmentEstimate>
          <ServiceID>PurolatorExpress</ServiceID>
          <ExpectedDeliveryDate>2026-10-20</ExpectedDeliveryDate>
          <EstimatedTransitDays>1</EstimatedTransitDays>
          <BasePrice>30.00</BasePrice>
          <Surcharges>
            <Surcharge><Amount>3.10</Amount><Type>Fuel</Type></Surcharge>
            <Surcharge><Amount>2.00</Amount><Type>ResidentialDelivery</Type></Surcharge>
          </Surcharges>
          <Taxes>
            <Tax><Amount>1.75</Amount><Type>GST</Type></Tax>
            <Tax><Amount>3.49</Amount><Type>QST</Type></Tax>
          </Taxes>
          <TotalPrice>40.34</TotalPrice>
        </ShipmentEstimate>
        <ShipmentEstimate>
          <ServiceID>PurolatorGround</ServiceID>
          <EstimatedTransitDays>3</EstimatedTransitDays>
          <BasePrice>14.00</BasePrice>
          <TotalPrice>17.456</TotalPrice>
        </ShipmentEstimate>
      </ShipmentEstimates>
    </GetFullEstimateResponse>
  </s:Body>
</s:Envelope>`

func TestSOAPAPIClient_GetRates(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("SOAPAction"))
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, estimateXML)
	}))
	defer srv.Close()

	client := purolator.NewSOAPAPIClient(purolator.SOAPAPIClientConfig{
		BaseURL: srv.URL, Username: "key", Password: "secret", Language: "fr",
	})
	resp, err := client.GetRates(context.Background(), &purolator.RatesRequest{
		BillingAccountNumber: "9999999999",
		SenderPostalCode:     "H7T2P5",
		Receiver:             purolator.Address{City: "Saint-Jean & Co", Province: "QC", PostalCode: "J3B1A1", Country: "CA"},
		TotalWeight:          0.4,
		TotalPieces:          1,
	})

	require.NoError(t, err)
	require.Len(t, resp.Estimates, 2)
	express := resp.Estimates[0]
	assert.Equal(t, "PurolatorExpress", express.ServiceID)
	assert.True(t, express.FuelSurcharge.Equal(decimal.RequireFromString("3.10")))
	assert.True(t, express.Taxes.Equal(decimal.RequireFromString("5.24")))
	assert.True(t, express.TotalPrice.Equal(decimal.RequireFromString("40.34")))
	assert.Equal(t, "2026-10-20", express.ExpectedDeliveryDate)
	assert.True(t, resp.Estimates[1].FuelSurcharge.IsZero())

	assert.Contains(t, body, "<v2:Language>fr</v2:Language>")
	assert.Contains(t, body, "<v2:Value>1.0</v2:Value>")
	assert.Contains(t, body, "Saint-Jean &amp; Co")
}

func TestSOAPAPIClient_GetRates_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>`+
			`<faultcode>s:Client</faultcode><faultstring>Invalid credentials</faultstring></s:Fault></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	client := purolator.NewSOAPAPIClient(purolator.SOAPAPIClientConfig{BaseURL: srv.URL})
	_, err := client.GetRates(context.Background(), &purolator.RatesRequest{SenderPostalCode: "H7T2P5", TotalWeight: 2, TotalPieces: 1})

	var apiErr *purolator.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "s:Client", apiErr.Code)
	assert.Equal(t, "Invalid credentials", apiErr.Description)
	assert.True(t, apiErr.Retryable())
}

func TestModule_GetShippingQuotes_SOAP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, estimateXML)
	}))
	defer srv.Close()

	m := purolator.New(purolator.Config{
		BaseURL: srv.URL, Username: "key", Password: "secret", AccountNumber: "9999999999",
	}, nil, nil)
	qc := quoteContext("CA", "J3B 1A1", 1)
	qc.Locale = language.CanadianFrench

	options, err := m.GetShippingQuotes(context.Background(), qc)

	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "PurolatorGround", options[0].OptionCode)
	assert.Equal(t, "17.46", options[0].Price.StringFixed(2))
	assert.Equal(t, "Purolator Express (guaranteed)", options[1].Description)
}

func TestModule_ValidateConfiguration(t *testing.T) {
	store := shipping.Store{Code: "DEFAULT", Address: shipping.Address{CountryCode: "CA"}}
	complete := shipping.ModuleConfiguration{
		ModuleCode: purolator.Code,
		IntegrationKeys: map[string]string{
			purolator.KeyUsername:      "key",
			purolator.KeyPassword:      "secret",
			purolator.KeyAccountNumber: "9999999999",
		},
	}
	m := purolator.New(purolator.Config{}, nil, nil)

	assert.NoError(t, m.ValidateConfiguration(complete, store))

	missing := shipping.ModuleConfiguration{ModuleCode: purolator.Code, IntegrationKeys: map[string]string{purolator.KeyUsername: "key"}}
	assert.ErrorContains(t, m.ValidateConfiguration(missing, store), "password")

	usStore := shipping.Store{Code: "US", Address: shipping.Address{CountryCode: "US"}}
	assert.ErrorContains(t, m.ValidateConfiguration(complete, usStore), "Canada")

	mock := purolator.New(purolator.Config{UseMock: true}, nil, nil)
	assert.NoError(t, mock.ValidateConfiguration(shipping.ModuleConfiguration{ModuleCode: purolator.Code}, usStore))
}
