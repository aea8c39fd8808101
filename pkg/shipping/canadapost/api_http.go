package canadapost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	rateMediaType = "application/vnd.cpc.ship.rate-v4+xml"
	rateNamespace = "http://www.canadapost.ca/ws/ship/rate-v4"

	// ProductionURL is the Canada Post production endpoint.
	ProductionURL = "https://soa-gw.canadapost.ca"
	// DevelopmentURL is the Canada Post development endpoint.
	DevelopmentURL = "https://ct.soa-gw.canadapost.ca"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/XML.
type HTTPAPIClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	language   string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string // Password for Basic Auth
	Language  string // en-CA or fr-CA
	Timeout   time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	lang := cfg.Language
	if lang == "" {
		lang = "en-CA"
	}

	return &HTTPAPIClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		language:  lang,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// mailingScenario is the XML structure for rate requests
type mailingScenario struct {
	XMLName          xml.Name              `xml:"mailing-scenario"`
	Xmlns            string                `xml:"xmlns,attr"`
	CustomerNumber   string                `xml:"customer-number,omitempty"`
	ContractID       string                `xml:"contract-id,omitempty"`
	ParcelCharacter  parcelCharacteristics `xml:"parcel-characteristics"`
	OriginPostalCode string                `xml:"origin-postal-code"`
	Destination      xmlDestination        `xml:"destination"`
}

type parcelCharacteristics struct {
	Weight     float64        `xml:"weight"`
	Dimensions *xmlDimensions `xml:"dimensions,omitempty"`
}

type xmlDimensions struct {
	Length float64 `xml:"length"`
	Width  float64 `xml:"width"`
	Height float64 `xml:"height"`
}

type xmlDestination struct {
	Domestic      *xmlDomestic      `xml:"domestic,omitempty"`
	UnitedStates  *xmlUnitedStates  `xml:"united-states,omitempty"`
	International *xmlInternational `xml:"international,omitempty"`
}

type xmlDomestic struct {
	PostalCode string `xml:"postal-code"`
}

type xmlUnitedStates struct {
	ZipCode string `xml:"zip-code"`
}

type xmlInternational struct {
	CountryCode string `xml:"country-code"`
}

// priceQuotes is the XML response structure for rates
type priceQuotes struct {
	XMLName    xml.Name     `xml:"price-quotes"`
	PriceQuote []priceQuote `xml:"price-quote"`
}

type priceQuote struct {
	ServiceCode     string          `xml:"service-code"`
	ServiceName     string          `xml:"service-name"`
	PriceDetails    priceDetails    `xml:"price-details"`
	ServiceStandard serviceStandard `xml:"service-standard"`
}

type priceDetails struct {
	Base        float64     `xml:"base"`
	Taxes       priceTaxes  `xml:"taxes"`
	Due         float64     `xml:"due"`
	Adjustments adjustments `xml:"adjustments"`
}

type priceTaxes struct {
	GST float64 `xml:"gst"`
	PST float64 `xml:"pst"`
	HST float64 `xml:"hst"`
}

type adjustments struct {
	Adjustment []adjustment `xml:"adjustment"`
}

type adjustment struct {
	AdjustmentCode string  `xml:"adjustment-code"`
	AdjustmentCost float64 `xml:"adjustment-cost"`
}

type serviceStandard struct {
	GuaranteedDelivery   bool   `xml:"guaranteed-delivery"`
	ExpectedTransitTime  int    `xml:"expected-transit-time"`
	ExpectedDeliveryDate string `xml:"expected-delivery-date"`
}

// messages is the XML error response structure
type messages struct {
	XMLName xml.Name  `xml:"messages"`
	Message []message `xml:"message"`
}

type message struct {
	Code        string `xml:"code"`
	Description string `xml:"description"`
}

// GetRates fetches shipping rates from the Canada Post API.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	scenario := mailingScenario{
		Xmlns:            rateNamespace,
		CustomerNumber:   req.CustomerNumber,
		ContractID:       req.ContractID,
		OriginPostalCode: normalizePostalCode(req.OriginPostal),
		ParcelCharacter: parcelCharacteristics{
			Weight: req.Weight,
		},
	}

	if req.Dimensions.Length > 0 {
		scenario.ParcelCharacter.Dimensions = &xmlDimensions{
			Length: req.Dimensions.Length,
			Width:  req.Dimensions.Width,
			Height: req.Dimensions.Height,
		}
	}

	switch {
	case req.Destination.Domestic != nil:
		scenario.Destination.Domestic = &xmlDomestic{
			PostalCode: normalizePostalCode(req.Destination.Domestic.PostalCode),
		}
	case req.Destination.UnitedStates != nil:
		scenario.Destination.UnitedStates = &xmlUnitedStates{
			ZipCode: strings.TrimSpace(req.Destination.UnitedStates.ZipCode),
		}
	case req.Destination.International != nil:
		scenario.Destination.International = &xmlInternational{
			CountryCode: req.Destination.International.CountryCode,
		}
	default:
		return nil, fmt.Errorf("rate request has no destination")
	}

	xmlBody, err := xml.Marshal(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/rs/ship/price", rateMediaType, xmlBody)
	if err != nil {
		return nil, &APIError{Code: "HTTP_TRANSPORT", Description: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var quotes priceQuotes
	if err := xml.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return convertRatesResponse(&quotes), nil
}

func convertRatesResponse(quotes *priceQuotes) *RatesResponse {
	rates := make([]Rate, len(quotes.PriceQuote))
	for i, q := range quotes.PriceQuote {
		var fuelSurcharge float64
		for _, adj := range q.PriceDetails.Adjustments.Adjustment {
			if adj.AdjustmentCode == "FUELSC" {
				fuelSurcharge = adj.AdjustmentCost
				break
			}
		}

		taxes := q.PriceDetails.Taxes.GST + q.PriceDetails.Taxes.PST + q.PriceDetails.Taxes.HST

		rates[i] = Rate{
			ServiceCode:        q.ServiceCode,
			ServiceName:        q.ServiceName,
			BaseRate:           q.PriceDetails.Base,
			FuelSurcharge:      fuelSurcharge,
			Taxes:              taxes,
			TotalPrice:         q.PriceDetails.Due,
			ExpectedTransit:    q.ServiceStandard.ExpectedTransitTime,
			ExpectedDelivery:   q.ServiceStandard.ExpectedDeliveryDate,
			GuaranteedDelivery: q.ServiceStandard.GuaranteedDelivery,
		}
	}

	return &RatesResponse{Rates: rates}
}

func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path, mediaType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Canada Post uses Basic Auth with API key:secret
	credentials := c.apiKey
	if c.apiSecret != "" {
		credentials = c.apiKey + ":" + c.apiSecret
	}
	auth := base64.StdEncoding.EncodeToString([]byte(credentials))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept-Language", c.language)
	req.Header.Set("Accept", mediaType)
	if body != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	return c.httpClient.Do(req)
}

func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var msgs messages
	if err := xml.Unmarshal(body, &msgs); err == nil && len(msgs.Message) > 0 {
		return &APIError{
			Status:      resp.StatusCode,
			Code:        msgs.Message[0].Code,
			Description: msgs.Message[0].Description,
		}
	}

	return &APIError{
		Status:      resp.StatusCode,
		Code:        fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Description: string(body),
	}
}

// normalizePostalCode removes spaces from postal codes
func normalizePostalCode(pc string) string {
	return strings.ReplaceAll(strings.ToUpper(pc), " ", "")
}

var _ APIClient = (*HTTPAPIClient)(nil)
