// Package freightcom provides a rate module backed by the Freightcom
// multi-carrier API.
package freightcom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Code is the module code.
const Code = "freightcom"

// Integration keys and options read from the store's module configuration.
const (
	KeyAPIKey = "apiKey"

	OptionServices         = "services"
	OptionExcludedServices = "excludedServices"
)

// Config holds process-wide Freightcom settings.
type Config struct {
	APIKey       string
	BaseURL      string
	UseMock      bool
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// ClientFactory builds an API client for one store configuration.
type ClientFactory func(cfg HTTPAPIClientConfig) APIClient

// Module is the Freightcom rate module.
type Module struct {
	config    Config
	newClient ClientFactory
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a Freightcom module.
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
		tracer = otel.Tracer("github.com/tournevent/shipquote/pkg/shipping/freightcom")
	}
	return &Module{config: cfg, newClient: factory, logger: logger, tracer: tracer}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Freightcom", Regions: []string{"CA", "US"}}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration checks the API key.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, store shipping.Store) error {
	if m.config.UseMock {
		return nil
	}
	if cfg.Key(KeyAPIKey, m.config.APIKey) == "" {
		return fmt.Errorf("freightcom: %s is required", KeyAPIKey)
	}
	return nil
}

// GetShippingQuotes rates every parcel in one request and returns the
// carrier offers, cheapest first.
func (m *Module) GetShippingQuotes(ctx context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	if len(qc.Packages) == 0 {
		return nil, nil
	}
	if qc.Origin.Address.PostalCode == "" {
		return nil, shipping.NewModuleError(Code, "MISSING_ORIGIN", "origin postal code is required")
	}
	if qc.Delivery.PostalCode == "" {
		return nil, nil
	}

	ctx, span := m.tracer.Start(ctx, "freightcom.GetRates", trace.WithAttributes(
		attribute.String("destination.country", qc.Delivery.CountryCode),
		attribute.Int("packages", len(qc.Packages)),
	))
	defer span.End()

	req := &RatesRequest{
		Services:         options(qc.ModuleConfig, OptionServices),
		ExcludedServices: options(qc.ModuleConfig, OptionExcludedServices),
		Details: ShippingDetails{
			Origin:      location(qc.Origin.Address, false),
			Destination: location(qc.Delivery, true),
			Packaging:   PackagingInfo{Type: "package", Packages: packages(qc.Packages)},
		},
	}

	m.logger.Ctx(ctx).Info("Getting Freightcom rates",
		zap.String("origin_postal", req.Details.Origin.PostalCode),
		zap.String("destination_country", req.Details.Destination.Country),
		zap.Int("packages", len(req.Details.Packaging.Packages)),
	)

	resp, err := m.newClient(m.clientConfig(qc.ModuleConfig)).GetRates(ctx, req)
	if err != nil {
		span.RecordError(err)
		m.logger.Ctx(ctx).Error("Freightcom API error", zap.Error(err))
		return nil, toModuleError(err)
	}

	currency := qc.Store.Currency
	opts := make([]shipping.ShippingOption, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		// prices in another currency cannot be shown to the shopper as is
		if currency != "" && r.Currency != "" && !strings.EqualFold(r.Currency, currency) {
			continue
		}
		desc := r.CarrierName
		if r.Guaranteed {
			desc += " (guaranteed)"
		}
		opts = append(opts, shipping.ShippingOption{
			OptionCode:    r.ServiceID,
			OptionName:    r.ServiceName,
			Description:   desc,
			Price:         r.TotalPrice.Round(2),
			EstimatedDays: r.TransitDays,
		})
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Price.LessThan(opts[j].Price) })

	span.SetAttributes(attribute.Int("options", len(opts)))
	return opts, nil
}

func (m *Module) clientConfig(cfg *shipping.ModuleConfiguration) HTTPAPIClientConfig {
	return HTTPAPIClientConfig{
		BaseURL:      m.config.BaseURL,
		APIKey:       cfg.Key(KeyAPIKey, m.config.APIKey),
		Timeout:      m.config.Timeout,
		PollInterval: m.config.PollInterval,
		PollTimeout:  m.config.PollTimeout,
	}
}

func location(a shipping.Address, residential bool) Location {
	return Location{
		City:        a.City,
		Province:    a.ProvinceCode,
		PostalCode:  strings.ToUpper(strings.TrimSpace(a.PostalCode)),
		Country:     a.CountryCode,
		Residential: residential,
	}
}

func packages(pkgs []shipping.PackageDetails) []Package {
	out := make([]Package, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, Package{Length: p.Length, Width: p.Width, Height: p.Height, Weight: p.Weight})
	}
	return out
}

func options(cfg *shipping.ModuleConfiguration, name string) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, v := range cfg.IntegrationOptions[name] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toModuleError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipping.NewModuleError(Code, apiErr.Code, apiErr.Message).
			WithCause(err).
			WithRetryable(apiErr.Retryable())
	}
	return shipping.NewModuleError(Code, "API_ERROR", err.Error()).WithCause(err)
}

var (
	_ shipping.RateModule      = (*Module)(nil)
	_ shipping.ConfigValidator = (*Module)(nil)
)
