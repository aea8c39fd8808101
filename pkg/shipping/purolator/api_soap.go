package purolator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estimating service hosts.
const (
	ProductionURL  = "https://webservices.purolator.com"
	DevelopmentURL = "https://devwebservices.purolator.com"

	estimatingPath = "/EWS/V2/Estimating/EstimatingService.asmx"
	soapAction     = "http://purolator.com/pws/service/v2/GetFullEstimate"
)

// SOAPAPIClient calls the Purolator estimating service.
type SOAPAPIClient struct {
	baseURL    string
	username   string
	password   string
	language   string
	httpClient *http.Client
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Language string
	Timeout  time.Duration
}

// NewSOAPAPIClient creates a SOAP client.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ProductionURL
	}
	lang := cfg.Language
	if lang != "fr" {
		lang = "en"
	}
	return &SOAPAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		language:   lang,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetRates posts a GetFullEstimate request.
func (c *SOAPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	body, err := c.buildRatesRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+estimatingPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	httpReq.Header.Set("Authorization", "Basic "+auth)
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", soapAction)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Code: "HTTP_TRANSPORT", Description: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Status: resp.StatusCode, Code: "HTTP_READ", Description: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseFault(resp.StatusCode, data)
	}
	return parseRatesResponse(data)
}

var ratesTemplate = template.Must(template.New("rates").Funcs(template.FuncMap{"x": escape}).Parse(
	`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:v2="http://purolator.com/pws/datatypes/v2">
  <soap:Header>
    <v2:RequestContext>
      <v2:Version>2.2</v2:Version>
      <v2:Language>{{.Language}}</v2:Language>
      <v2:GroupID></v2:GroupID>
      <v2:RequestReference>{{.Reference}}</v2:RequestReference>
    </v2:RequestContext>
  </soap:Header>
  <soap:Body>
    <v2:GetFullEstimateRequest>
      <v2:Shipment>
        <v2:SenderInformation>
          <v2:Address>
            <v2:PostalCode>{{x .Req.SenderPostalCode}}</v2:PostalCode>
            <v2:Country>CA</v2:Country>
          </v2:Address>
        </v2:SenderInformation>
        <v2:ReceiverInformation>
          <v2:Address>
            <v2:City>{{x .Req.Receiver.City}}</v2:City>
            <v2:Province>{{x .Req.Receiver.Province}}</v2:Province>
            <v2:PostalCode>{{x .Req.Receiver.PostalCode}}</v2:PostalCode>
            <v2:Country>{{x .Req.Receiver.Country}}</v2:Country>
          </v2:Address>
        </v2:ReceiverInformation>
        <v2:PackageInformation>
          <v2:TotalWeight>
            <v2:Value>{{.Weight}}</v2:Value>
            <v2:WeightUnit>kg</v2:WeightUnit>
          </v2:TotalWeight>
          <v2:TotalPieces>{{.Req.TotalPieces}}</v2:TotalPieces>
        </v2:PackageInformation>
        <v2:PaymentInformation>
          <v2:PaymentType>Sender</v2:PaymentType>
          <v2:RegisteredAccountNumber>{{x .Req.BillingAccountNumber}}</v2:RegisteredAccountNumber>
        </v2:PaymentInformation>
      </v2:Shipment>
      <v2:ShowAlternativeServicesIndicator>true</v2:ShowAlternativeServicesIndicator>
    </v2:GetFullEstimateRequest>
  </soap:Body>
</soap:Envelope>`))

func (c *SOAPAPIClient) buildRatesRequest(req *RatesRequest) ([]byte, error) {
	// Purolator rejects weights below one unit.
	weight := req.TotalWeight
	if weight < 1 {
		weight = 1
	}
	var buf bytes.Buffer
	err := ratesTemplate.Execute(&buf, struct {
		Language  string
		Reference string
		Weight    string
		Req       *RatesRequest
	}{
		Language:  c.language,
		Reference: uuid.NewString(),
		Weight:    decimal.NewFromFloat(weight).StringFixed(1),
		Req:       req,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func escape(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault    *soapFault        `xml:"Fault,omitempty"`
	Estimate *estimateResponse `xml:"GetFullEstimateResponse,omitempty"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type estimateResponse struct {
	Errors    []responseError    `xml:"ResponseInformation>Errors>Error"`
	Estimates []shipmentEstimate `xml:"ShipmentEstimates>ShipmentEstimate"`
}

type responseError struct {
	Code        string `xml:"Code"`
	Description string `xml:"Description"`
}

type shipmentEstimate struct {
	ServiceID            string       `xml:"ServiceID"`
	ExpectedDeliveryDate string       `xml:"ExpectedDeliveryDate"`
	EstimatedTransitDays int          `xml:"EstimatedTransitDays"`
	BasePrice            string       `xml:"BasePrice"`
	Surcharges           []soapCharge `xml:"Surcharges>Surcharge"`
	Taxes                []soapCharge `xml:"Taxes>Tax"`
	TotalPrice           string       `xml:"TotalPrice"`
}

type soapCharge struct {
	Amount string `xml:"Amount"`
	Type   string `xml:"Type"`
}

func parseFault(status int, data []byte) error {
	var env soapEnvelope
	if err := xml.Unmarshal(data, &env); err == nil && env.Body.Fault != nil {
		return &APIError{Status: status, Code: env.Body.Fault.Code, Description: env.Body.Fault.String}
	}
	return &APIError{Status: status, Code: fmt.Sprintf("HTTP_%d", status), Description: string(data)}
}

func parseRatesResponse(data []byte) (*RatesResponse, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, &APIError{Status: http.StatusOK, Code: "PARSE_ERROR", Description: err.Error()}
	}
	if env.Body.Fault != nil {
		return nil, &APIError{Status: http.StatusOK, Code: env.Body.Fault.Code, Description: env.Body.Fault.String}
	}
	if env.Body.Estimate == nil {
		return nil, &APIError{Status: http.StatusOK, Code: "PARSE_ERROR", Description: "no rate estimates in response"}
	}
	if errs := env.Body.Estimate.Errors; len(errs) > 0 {
		return nil, &APIError{Status: http.StatusOK, Code: errs[0].Code, Description: errs[0].Description}
	}

	resp := &RatesResponse{Estimates: make([]Estimate, 0, len(env.Body.Estimate.Estimates))}
	for _, est := range env.Body.Estimate.Estimates {
		e := Estimate{
			ServiceID:            est.ServiceID,
			BasePrice:            amount(est.BasePrice),
			TotalPrice:           amount(est.TotalPrice),
			FuelSurcharge:        decimal.Zero,
			Taxes:                decimal.Zero,
			ExpectedDeliveryDate: est.ExpectedDeliveryDate,
			EstimatedTransitDays: est.EstimatedTransitDays,
		}
		for _, sc := range est.Surcharges {
			if sc.Type == "Fuel" || sc.Type == "FuelSurcharge" {
				e.FuelSurcharge = e.FuelSurcharge.Add(amount(sc.Amount))
			}
		}
		for _, tax := range est.Taxes {
			e.Taxes = e.Taxes.Add(amount(tax.Amount))
		}
		resp.Estimates = append(resp.Estimates, e)
	}
	return resp, nil
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ APIClient = (*SOAPAPIClient)(nil)
