// Package canadapost provides a rate module backed by the Canada Post
// rating API.
package canadapost

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Code is the module code.
const Code = "canadapost"

// Integration keys read from the store's module configuration.
const (
	KeyAPIKey         = "apiKey"
	KeyAPISecret      = "apiSecret"
	KeyCustomerNumber = "customerNumber"
	KeyContractID     = "contractId"

	// OptionServices restricts the services offered, e.g. DOM.RP.
	OptionServices = "services"
)

// Config holds process-wide Canada Post settings. Store credentials
// override the API key and secret.
type Config struct {
	APIKey         string
	APISecret      string
	CustomerNumber string
	BaseURL        string
	UseMock        bool
	Timeout        time.Duration
}

// ClientFactory builds an API client for one store configuration.
type ClientFactory func(cfg HTTPAPIClientConfig) APIClient

// Module is the Canada Post rate module.
type Module struct {
	config    Config
	newClient ClientFactory
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a Canada Post module. With UseMock set every store is rated
// by the mock client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	factory := func(c HTTPAPIClientConfig) APIClient { return NewHTTPAPIClient(c) }
	if cfg.UseMock {
		mock := NewMockAPIClient()
		mock.DiscardRequests = true
		factory = func(HTTPAPIClientConfig) APIClient { return mock }
	}
	return NewWithClientFactory(cfg, factory, logger, tracer)
}

// NewWithAPIClient creates a module that always uses apiClient.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	return NewWithClientFactory(cfg, func(HTTPAPIClientConfig) APIClient { return apiClient }, logger, tracer)
}

// NewWithClientFactory creates a module building clients with factory.
func NewWithClientFactory(cfg Config, factory ClientFactory, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shipquote/pkg/shipping/canadapost")
	}
	return &Module{config: cfg, newClient: factory, logger: logger, tracer: tracer}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Canada Post", Regions: []string{"CA"}}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration checks the store can be rated.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, store shipping.Store) error {
	if m.config.UseMock {
		return nil
	}
	if cfg.Key(KeyAPIKey, m.config.APIKey) == "" {
		return fmt.Errorf("canadapost: %s is required", KeyAPIKey)
	}
	if cfg.Key(KeyCustomerNumber, m.config.CustomerNumber) == "" {
		return fmt.Errorf("canadapost: %s is required", KeyCustomerNumber)
	}
	if store.Address.CountryCode != "CA" {
		return fmt.Errorf("canadapost: store must ship from Canada, not %q", store.Address.CountryCode)
	}
	return nil
}

// GetShippingQuotes rates every package and returns one option per service
// offered for all of them, priced at the sum of the package rates.
func (m *Module) GetShippingQuotes(ctx context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	if len(qc.Packages) == 0 {
		return nil, nil
	}
	if qc.Origin.Address.PostalCode == "" {
		return nil, shipping.NewModuleError(Code, "MISSING_ORIGIN", "origin postal code is required")
	}
	destination, ok := destinationFor(qc.Delivery)
	if !ok {
		// No postal code for a domestic or US destination.
		return nil, nil
	}

	ctx, span := m.tracer.Start(ctx, "canadapost.GetRates", trace.WithAttributes(
		attribute.String("destination.country", qc.Delivery.CountryCode),
		attribute.Int("packages", len(qc.Packages)),
	))
	defer span.End()

	client := m.newClient(m.clientConfig(qc.ModuleConfig))
	customer := qc.ModuleConfig.Key(KeyCustomerNumber, m.config.CustomerNumber)
	contract := qc.ModuleConfig.Key(KeyContractID, "")

	m.logger.Ctx(ctx).Info("Getting Canada Post rates",
		zap.String("origin_postal", qc.Origin.Address.PostalCode),
		zap.String("destination_country", qc.Delivery.CountryCode),
		zap.Int("package_count", len(qc.Packages)),
	)

	// order keeps the services as the first package's response lists them
	totals := make(map[string]*serviceTotal)
	var order []string
	for i, pkg := range qc.Packages {
		resp, err := client.GetRates(ctx, &RatesRequest{
			CustomerNumber: customer,
			ContractID:     contract,
			Weight:         pkg.Weight,
			Dimensions:     Dimensions{Length: pkg.Length, Width: pkg.Width, Height: pkg.Height},
			OriginPostal:   qc.Origin.Address.PostalCode,
			Destination:    destination,
		})
		if err != nil {
			span.RecordError(err)
			m.logger.Ctx(ctx).Error("Canada Post API error", zap.Error(err))
			return nil, toModuleError(err)
		}
		for _, r := range resp.Rates {
			t, seen := totals[r.ServiceCode]
			if !seen {
				if i > 0 {
					continue
				}
				t = &serviceTotal{rate: r, price: decimal.Zero}
				totals[r.ServiceCode] = t
				order = append(order, r.ServiceCode)
			}
			t.price = t.price.Add(decimal.NewFromFloat(r.TotalPrice))
			t.packages++
			if r.ExpectedTransit > t.rate.ExpectedTransit {
				t.rate.ExpectedTransit = r.ExpectedTransit
			}
		}
	}

	allowed := allowedServices(qc.ModuleConfig)
	options := make([]shipping.ShippingOption, 0, len(totals))
	for _, code := range order {
		t := totals[code]
		if t.packages != len(qc.Packages) {
			continue
		}
		if len(allowed) > 0 && !allowed[code] {
			continue
		}
		options = append(options, shipping.ShippingOption{
			OptionCode:    code,
			OptionName:    t.rate.ServiceName,
			Description:   description(t.rate),
			Price:         t.price.Round(2),
			EstimatedDays: t.rate.ExpectedTransit,
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Price.LessThan(options[j].Price) })

	span.SetAttributes(attribute.Int("options", len(options)))
	return options, nil
}

type serviceTotal struct {
	rate     Rate
	price    decimal.Decimal
	packages int
}

func (m *Module) clientConfig(cfg *shipping.ModuleConfiguration) HTTPAPIClientConfig {
	baseURL := m.config.BaseURL
	if baseURL == "" {
		baseURL = ProductionURL
		if cfg != nil && cfg.Environment == "TEST" {
			baseURL = DevelopmentURL
		}
	}
	return HTTPAPIClientConfig{
		BaseURL:   baseURL,
		APIKey:    cfg.Key(KeyAPIKey, m.config.APIKey),
		APISecret: cfg.Key(KeyAPISecret, m.config.APISecret),
		Timeout:   m.config.Timeout,
	}
}

func destinationFor(addr shipping.Address) (Destination, bool) {
	postal := strings.TrimSpace(addr.PostalCode)
	switch addr.CountryCode {
	case "CA":
		if postal == "" {
			return Destination{}, false
		}
		return Destination{Domestic: &DomesticDestination{PostalCode: postal}}, true
	case "US":
		if postal == "" {
			return Destination{}, false
		}
		return Destination{UnitedStates: &UnitedStatesDestination{ZipCode: postal}}, true
	default:
		return Destination{International: &InternationalDestination{CountryCode: addr.CountryCode}}, true
	}
}

func allowedServices(cfg *shipping.ModuleConfiguration) map[string]bool {
	if cfg == nil {
		return nil
	}
	services := cfg.IntegrationOptions[OptionServices]
	if len(services) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(services))
	for _, s := range services {
		allowed[strings.TrimSpace(s)] = true
	}
	return allowed
}

func description(r Rate) string {
	if r.GuaranteedDelivery {
		return r.ServiceName + " (guaranteed)"
	}
	return r.ServiceName
}

func toModuleError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipping.NewModuleError(Code, apiErr.Code, apiErr.Description).
			WithCause(err).
			WithRetryable(apiErr.Retryable())
	}
	return shipping.NewModuleError(Code, "API_ERROR", err.Error()).WithCause(err)
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
