// Package purolator provides a rate module backed by the Purolator
// estimating web service.
package purolator

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
const Code = "purolator"

// Integration keys read from the store's module configuration.
const (
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeyAccountNumber = "accountNumber"

	// OptionServices restricts the services offered, e.g. PurolatorGround.
	OptionServices = "services"
)

// Config holds process-wide Purolator settings.
type Config struct {
	Username      string
	Password      string
	AccountNumber string
	BaseURL       string
	UseMock       bool
	Timeout       time.Duration
}

// ClientFactory builds an API client for one store configuration.
type ClientFactory func(cfg SOAPAPIClientConfig) APIClient

// Module is the Purolator rate module. The whole shipment is estimated in a
// single call.
type Module struct {
	config    Config
	newClient ClientFactory
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a Purolator module.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	factory := func(c SOAPAPIClientConfig) APIClient { return NewSOAPAPIClient(c) }
	if cfg.UseMock {
		mock := NewMockAPIClient()
		mock.DiscardRequests = true
		factory = func(SOAPAPIClientConfig) APIClient { return mock }
	}
	return NewWithClientFactory(cfg, factory, logger, tracer)
}

// NewWithAPIClient creates a module that always uses apiClient.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	return NewWithClientFactory(cfg, func(SOAPAPIClientConfig) APIClient { return apiClient }, logger, tracer)
}

// NewWithClientFactory creates a module building clients with factory.
func NewWithClientFactory(cfg Config, factory ClientFactory, logger *otelzap.Logger, tracer trace.Tracer) *Module {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shipquote/pkg/shipping/purolator")
	}
	return &Module{config: cfg, newClient: factory, logger: logger, tracer: tracer}
}

// Metadata describes the module for the registry.
func Metadata() shipping.IntegrationModule {
	return shipping.IntegrationModule{Code: Code, Name: "Purolator", Regions: []string{"CA"}}
}

// Code returns the module code.
func (m *Module) Code() string {
	return Code
}

// ValidateConfiguration checks the account credentials.
func (m *Module) ValidateConfiguration(cfg shipping.ModuleConfiguration, store shipping.Store) error {
	if m.config.UseMock {
		return nil
	}
	for _, key := range []struct{ name, fallback string }{
		{KeyUsername, m.config.Username},
		{KeyPassword, m.config.Password},
		{KeyAccountNumber, m.config.AccountNumber},
	} {
		if cfg.Key(key.name, key.fallback) == "" {
			return fmt.Errorf("purolator: %s is required", key.name)
		}
	}
	if store.Address.CountryCode != "CA" {
		return fmt.Errorf("purolator: store must ship from Canada, not %q", store.Address.CountryCode)
	}
	return nil
}

// GetShippingQuotes estimates the shipment and returns one option per
// service, cheapest first.
func (m *Module) GetShippingQuotes(ctx context.Context, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	if len(qc.Packages) == 0 {
		return nil, nil
	}
	if qc.Origin.Address.PostalCode == "" {
		return nil, shipping.NewModuleError(Code, "MISSING_ORIGIN", "origin postal code is required")
	}
	if qc.Delivery.PostalCode == "" && (qc.Delivery.CountryCode == "CA" || qc.Delivery.CountryCode == "US") {
		return nil, nil
	}

	ctx, span := m.tracer.Start(ctx, "purolator.GetRates", trace.WithAttributes(
		attribute.String("destination.country", qc.Delivery.CountryCode),
		attribute.Int("packages", len(qc.Packages)),
	))
	defer span.End()

	req := &RatesRequest{
		BillingAccountNumber: qc.ModuleConfig.Key(KeyAccountNumber, m.config.AccountNumber),
		SenderPostalCode:     compactPostal(qc.Origin.Address.PostalCode),
		Receiver: Address{
			City:       qc.Delivery.City,
			Province:   qc.Delivery.ProvinceCode,
			PostalCode: compactPostal(qc.Delivery.PostalCode),
			Country:    qc.Delivery.CountryCode,
		},
		TotalWeight: qc.TotalWeight(),
		TotalPieces: len(qc.Packages),
	}

	m.logger.Ctx(ctx).Info("Getting Purolator estimates",
		zap.String("sender_postal", req.SenderPostalCode),
		zap.String("receiver_country", req.Receiver.Country),
		zap.Float64("total_weight", req.TotalWeight),
		zap.Int("pieces", req.TotalPieces),
	)

	client := m.newClient(m.clientConfig(qc))
	resp, err := client.GetRates(ctx, req)
	if err != nil {
		span.RecordError(err)
		m.logger.Ctx(ctx).Error("Purolator API error", zap.Error(err))
		return nil, toModuleError(err)
	}

	allowed := allowedServices(qc.ModuleConfig)
	options := make([]shipping.ShippingOption, 0, len(resp.Estimates))
	for _, est := range resp.Estimates {
		if len(allowed) > 0 && !allowed[est.ServiceID] {
			continue
		}
		desc := est.ServiceName()
		if est.Guaranteed() {
			desc += " (guaranteed)"
		}
		options = append(options, shipping.ShippingOption{
			OptionCode:    est.ServiceID,
			OptionName:    est.ServiceName(),
			Description:   desc,
			Price:         est.TotalPrice.Round(2),
			EstimatedDays: est.EstimatedTransitDays,
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Price.LessThan(options[j].Price) })

	span.SetAttributes(attribute.Int("options", len(options)))
	return options, nil
}

func (m *Module) clientConfig(qc *shipping.QuoteContext) SOAPAPIClientConfig {
	cfg := qc.ModuleConfig
	baseURL := m.config.BaseURL
	if baseURL == "" {
		baseURL = ProductionURL
		if cfg != nil && cfg.Environment == "TEST" {
			baseURL = DevelopmentURL
		}
	}
	lang := "en"
	if base, _ := qc.Locale.Base(); base.String() == "fr" {
		lang = "fr"
	}
	return SOAPAPIClientConfig{
		BaseURL:  baseURL,
		Username: cfg.Key(KeyUsername, m.config.Username),
		Password: cfg.Key(KeyPassword, m.config.Password),
		Language: lang,
		Timeout:  m.config.Timeout,
	}
}

func compactPostal(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
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
