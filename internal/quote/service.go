// Package quote computes shipping quotes for a cart.
//
// A computation runs synchronously: eligibility, rate module selection,
// packaging, free shipping, pre-processors, the rate module, option
// selection, post-processors and persistence of the finalized options.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/internal/locale"
	"github.com/tournevent/shipquote/internal/telemetry"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// StoreLoader loads merchant stores.
type StoreLoader interface {
	Store(ctx context.Context, code string) (shipping.Store, error)
}

// ConfigurationLoader loads a store's shipping settings.
type ConfigurationLoader interface {
	MerchantShippingConfiguration(ctx context.Context, storeCode string) (shipping.MerchantShippingConfiguration, error)
	ModuleConfigurations(ctx context.Context, storeCode string) (map[string]shipping.ModuleConfiguration, error)
}

// ConfigurationWriter saves module configurations.
type ConfigurationWriter interface {
	SaveModuleConfiguration(ctx context.Context, storeCode string, cfg shipping.ModuleConfiguration) error
}

// OriginResolver returns the configured shipping origin of a store, or nil
// when none is saved.
type OriginResolver interface {
	ShippingOrigin(ctx context.Context, storeCode string) (*shipping.ShippingOrigin, error)
}

// PackageBuilder converts line items to packages.
type PackageBuilder interface {
	BuildPackages(items []shipping.LineItem, cfg shipping.MerchantShippingConfiguration) ([]shipping.PackageDetails, error)
}

// QuotePersister records finalized options.
type QuotePersister interface {
	PersistQuote(ctx context.Context, q *shipping.Quote) (string, error)
}

// CountryResolver names countries.
type CountryResolver interface {
	CountryName(isoCode string, locale language.Tag) (string, bool)
	Countries(codes []string, locale language.Tag) []locale.Country
}

// PriceFormatter renders amounts for a store.
type PriceFormatter interface {
	Format(store shipping.Store, amount decimal.Decimal) (string, error)
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Registry  *shipping.Registry
	Stores    StoreLoader
	Configs   ConfigurationLoader
	Writer    ConfigurationWriter
	Origins   OriginResolver
	Packager  PackageBuilder
	Persister QuotePersister
	Countries CountryResolver
	Formatter PriceFormatter
	Metrics   *telemetry.Metrics
	Logger    *otelzap.Logger
	Tracer    trace.Tracer

	// DefaultLocale is used when neither the request nor the store has one.
	DefaultLocale language.Tag
	Now           func() time.Time
}

// Request is a shipping quote request for a cart.
type Request struct {
	CartID     string
	StoreCode  string
	CustomerID string
	Delivery   shipping.Address
	Items      []shipping.LineItem
	Locale     language.Tag
	IPAddress  string
}

// Service computes shipping quotes.
type Service struct {
	Dependencies
}

// NewService creates a quote service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = otelzap.New(zap.NewNop())
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/tournevent/shipquote/internal/quote")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DefaultLocale == language.Und {
		deps.DefaultLocale = language.English
	}
	return &Service{Dependencies: deps}
}

// GetShippingQuote runs the quote pipeline. Business outcomes (not
// eligible, no module, free shipping) are reported on the returned quote;
// errors are faults.
func (s *Service) GetShippingQuote(ctx context.Context, req Request) (*shipping.ShippingQuote, error) {
	ctx, span := s.Tracer.Start(ctx, "quote.GetShippingQuote", trace.WithAttributes(
		attribute.String("store", req.StoreCode),
		attribute.String("cart", req.CartID),
		attribute.String("delivery.country", req.Delivery.CountryCode),
	))
	defer span.End()

	start := time.Now()
	q, err := s.compute(ctx, req)

	module := ""
	if q != nil {
		module = q.CurrentModule
	}
	s.Metrics.RecordQuote(req.StoreCode, module, outcome(q, err), time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Logger.Ctx(ctx).Error("Shipping quote failed",
			zap.String("store", req.StoreCode),
			zap.String("cart", req.CartID),
			zap.Error(err),
		)
		return nil, err
	}

	s.Logger.Ctx(ctx).Info("Shipping quote computed",
		zap.String("store", req.StoreCode),
		zap.String("cart", req.CartID),
		zap.String("module", q.CurrentModule),
		zap.String("reason", string(q.Reason)),
		zap.Bool("free_shipping", q.FreeShipping),
		zap.Int("option_count", len(q.Options)),
	)
	return q, nil
}

func (s *Service) compute(ctx context.Context, req Request) (*shipping.ShippingQuote, error) {
	if len(req.Items) == 0 {
		return nil, shipping.ErrNoLineItems
	}

	store, err := s.Stores.Store(ctx, req.StoreCode)
	if err != nil {
		return nil, fmt.Errorf("loading store %s: %w", req.StoreCode, err)
	}
	store.Address.CountryCode = strings.ToUpper(strings.TrimSpace(store.Address.CountryCode))
	if store.Address.CountryCode == "" {
		return nil, fmt.Errorf("%w: store %s", shipping.ErrMissingCountry, store.Code)
	}

	delivery := req.Delivery
	delivery.CountryCode = strings.ToUpper(strings.TrimSpace(delivery.CountryCode))
	if delivery.CountryCode == "" {
		return nil, fmt.Errorf("%w: delivery address", shipping.ErrMissingCountry)
	}

	shippingCfg, err := s.Configs.MerchantShippingConfiguration(ctx, store.Code)
	if err != nil {
		return nil, fmt.Errorf("loading shipping configuration: %w", err)
	}
	modules, err := s.Configs.ModuleConfigurations(ctx, store.Code)
	if err != nil {
		return nil, fmt.Errorf("loading module configurations: %w", err)
	}
	origin, err := s.resolveOrigin(ctx, store)
	if err != nil {
		return nil, err
	}
	tag := s.localeFor(req, store)

	q := &shipping.ShippingQuote{
		Delivery:     delivery,
		Origin:       origin.Address,
		Informations: make(map[string]any),
	}

	if reason := checkEligibility(store, delivery, shippingCfg); reason != "" {
		q.Reason = reason
		q.ReasonCountry = delivery.CountryCode
		return q, nil
	}
	if strings.TrimSpace(delivery.PostalCode) == "" {
		q.Warnings = append(q.Warnings, shipping.ReasonNoPostalCode)
	}

	code, ok := s.selectModule(modules)
	if !ok {
		q.Reason = shipping.ReasonNoModuleConfigured
		return q, nil
	}
	meta, found := s.Registry.Metadata(code)
	if !found || !meta.SupportsCountry(store.Address.CountryCode) {
		s.Logger.Ctx(ctx).Warn("Shipping module has no metadata for store",
			zap.String("module", code),
			zap.String("store", store.Code),
		)
		q.Reason = shipping.ReasonNoModuleConfigured
		return q, nil
	}
	module, err := s.Registry.Module(code)
	if err != nil {
		q.Reason = shipping.ReasonNoModuleConfigured
		return q, nil
	}
	q.CurrentModule = code

	packages, err := s.Packager.BuildPackages(req.Items, shippingCfg)
	if err != nil {
		return nil, fmt.Errorf("building packages: %w", err)
	}
	total := OrderTotal(req.Items)

	if freeShippingApplies(shippingCfg, store, delivery, total) {
		q.FreeShipping = true
		q.FreeShippingAmount = shippingCfg.FreeShippingThreshold
		return q, nil
	}
	q.HandlingFee = shippingCfg.HandlingFee
	q.TaxOnShipping = shippingCfg.TaxOnShipping

	moduleCfg := modules[code]
	qc := &shipping.QuoteContext{
		Quote:            q,
		Packages:         packages,
		OrderTotal:       total,
		Delivery:         delivery,
		Origin:           origin,
		Store:            store,
		ModuleConfig:     &moduleCfg,
		Module:           meta,
		ShippingConfig:   shippingCfg,
		AvailableModules: s.Registry.ModulesForCountry(delivery.CountryCode),
		Locale:           tag,
	}

	module, err = s.runPreProcessors(ctx, qc, modules, module)
	if err != nil {
		return nil, err
	}

	options, err := s.invokeModule(ctx, module, qc)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		if strings.TrimSpace(delivery.PostalCode) != "" {
			q.Reason = shipping.ReasonNoShippingToCountry
			q.ReasonCountry = delivery.CountryCode
		}
		return q, nil
	}

	if err := s.decorateOptions(options, q.CurrentModule, store, delivery.CountryCode, tag); err != nil {
		return nil, err
	}
	final, selectedIdx := SelectOptions(options, shippingCfg.SelectionPolicy)
	s.stampDelivery(final)
	q.Options = final
	q.SelectedOption = &q.Options[selectedIdx]
	selectedID := q.SelectedOption.OptionID

	if err := s.runPostProcessors(ctx, qc, modules); err != nil {
		return nil, err
	}
	q.SelectedOption = findOption(q.Options, selectedID)

	if err := s.persist(ctx, req, store, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) resolveOrigin(ctx context.Context, store shipping.Store) (shipping.ShippingOrigin, error) {
	fallback := shipping.ShippingOrigin{Active: true, Address: store.Address}
	if s.Origins == nil {
		return fallback, nil
	}
	origin, err := s.Origins.ShippingOrigin(ctx, store.Code)
	if err != nil {
		return shipping.ShippingOrigin{}, fmt.Errorf("loading shipping origin: %w", err)
	}
	if origin == nil || !origin.Active {
		return fallback, nil
	}
	return *origin, nil
}

func (s *Service) localeFor(req Request, store shipping.Store) language.Tag {
	if req.Locale != language.Und {
		return req.Locale
	}
	return locale.ParseTag(store.DefaultLanguage, s.DefaultLocale)
}

func (s *Service) runPreProcessors(ctx context.Context, qc *shipping.QuoteContext, modules map[string]shipping.ModuleConfiguration, module shipping.RateModule) (shipping.RateModule, error) {
	pre := s.Registry.PreProcessors()
	for _, p := range pre {
		if p.Code() == shipping.DistancePreProcessorCode {
			qc.UseDistanceModule = true
		}
	}

	for _, p := range pre {
		qc.ProcessorConfig = configFor(modules, p.Code())
		previous := module.Code()
		if err := s.runProcessor(ctx, p, qc, shipping.PhasePre); err != nil {
			return nil, err
		}
		if qc.Quote.CurrentModule == previous {
			continue
		}

		next, meta, cfg, err := s.switchModule(qc.Quote.CurrentModule, qc.Store.Address.CountryCode, modules)
		if err != nil {
			s.Metrics.RecordError(p.Code(), "invalid_switch")
			return nil, fmt.Errorf("processor %s: %w", p.Code(), err)
		}
		s.Logger.Ctx(ctx).Info("Pre-processor switched shipping module",
			zap.String("processor", p.Code()),
			zap.String("from", previous),
			zap.String("to", next.Code()),
		)
		module = next
		qc.Module = meta
		qc.ModuleConfig = &cfg
	}
	qc.ProcessorConfig = nil
	return module, nil
}

func (s *Service) runPostProcessors(ctx context.Context, qc *shipping.QuoteContext, modules map[string]shipping.ModuleConfiguration) error {
	for _, p := range s.Registry.PostProcessors() {
		cfg := configFor(modules, p.Code())
		if cfg == nil {
			s.Logger.Ctx(ctx).Debug("Skipping unconfigured post-processor", zap.String("processor", p.Code()))
			continue
		}
		qc.ProcessorConfig = cfg
		if err := s.runProcessor(ctx, p, qc, shipping.PhasePost); err != nil {
			return err
		}
	}
	qc.ProcessorConfig = nil
	return nil
}

func (s *Service) runProcessor(ctx context.Context, p shipping.Processor, qc *shipping.QuoteContext, phase shipping.Phase) error {
	ctx, span := s.Tracer.Start(ctx, "quote.processor", trace.WithAttributes(
		attribute.String("processor", p.Code()),
		attribute.String("phase", phase.String()),
	))
	defer span.End()

	if err := p.Process(ctx, qc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Metrics.RecordError(p.Code(), phase.String()+"_processor")
		return fmt.Errorf("%w: %s: %w", shipping.ErrProcessorFailed, p.Code(), err)
	}
	return nil
}

// switchModule validates a module chosen by a pre-processor.
func (s *Service) switchModule(code, storeCountry string, modules map[string]shipping.ModuleConfiguration) (shipping.RateModule, shipping.IntegrationModule, shipping.ModuleConfiguration, error) {
	var none shipping.IntegrationModule
	cfg, ok := modules[code]
	if !ok {
		return nil, none, cfg, fmt.Errorf("%w: %q is not configured for the store", shipping.ErrInvalidModuleSwitch, code)
	}
	if !cfg.Active {
		return nil, none, cfg, fmt.Errorf("%w: %q is not active", shipping.ErrInvalidModuleSwitch, code)
	}
	if s.Registry.IsProcessor(code) {
		return nil, none, cfg, fmt.Errorf("%w: %q is a processor", shipping.ErrInvalidModuleSwitch, code)
	}
	module, err := s.Registry.Module(code)
	if err != nil {
		return nil, none, cfg, fmt.Errorf("%w: %w", shipping.ErrInvalidModuleSwitch, err)
	}
	meta, found := s.Registry.Metadata(code)
	if !found {
		return nil, none, cfg, fmt.Errorf("%w: %q has no metadata", shipping.ErrInvalidModuleSwitch, code)
	}
	if !meta.SupportsCountry(storeCountry) {
		return nil, none, cfg, fmt.Errorf("%w: %q does not serve %s", shipping.ErrInvalidModuleSwitch, code, storeCountry)
	}
	return module, meta, cfg, nil
}

func (s *Service) invokeModule(ctx context.Context, module shipping.RateModule, qc *shipping.QuoteContext) ([]shipping.ShippingOption, error) {
	ctx, span := s.Tracer.Start(ctx, "quote.module", trace.WithAttributes(
		attribute.String("module", module.Code()),
		attribute.Int("packages", len(qc.Packages)),
	))
	defer span.End()

	options, err := module.GetShippingQuotes(ctx, qc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Metrics.RecordError(module.Code(), errorType(err))
		return nil, fmt.Errorf("%w: %s: %w", shipping.ErrModuleFailed, module.Code(), err)
	}
	for _, o := range options {
		if o.Price.IsNegative() {
			s.Metrics.RecordError(module.Code(), "invalid_option")
			return nil, fmt.Errorf("%w: %w", shipping.ErrModuleFailed,
				shipping.NewModuleError(module.Code(), "INVALID_OPTION", "negative option price "+o.Price.String()))
		}
	}
	span.SetAttributes(attribute.Int("options", len(options)))
	return options, nil
}

func (s *Service) persist(ctx context.Context, req Request, store shipping.Store, q *shipping.ShippingQuote) error {
	if s.Persister == nil {
		return nil
	}
	now := s.Now()
	for i := range q.Options {
		opt := &q.Options[i]
		id, err := s.Persister.PersistQuote(ctx, &shipping.Quote{
			CartID:        req.CartID,
			StoreCode:     store.Code,
			CustomerID:    req.CustomerID,
			ModuleCode:    opt.ModuleCode,
			OptionCode:    opt.OptionCode,
			OptionName:    opt.OptionName,
			Price:         opt.Price,
			HandlingFee:   q.HandlingFee,
			FreeShipping:  q.FreeShipping,
			TaxOnShipping: q.TaxOnShipping,
			EstimatedDays: opt.EstimatedDays,
			DeliveryDate:  opt.DeliveryDate,
			Delivery:      q.Delivery,
			IPAddress:     req.IPAddress,
			QuoteDate:     now,
		})
		if err != nil {
			return fmt.Errorf("persisting quote: %w", err)
		}
		opt.QuoteID = id
	}
	return nil
}

func configFor(modules map[string]shipping.ModuleConfiguration, code string) *shipping.ModuleConfiguration {
	cfg, ok := modules[code]
	if !ok {
		return nil
	}
	return &cfg
}

func outcome(q *shipping.ShippingQuote, err error) string {
	switch {
	case err != nil:
		return "error"
	case q.Reason != "":
		return strings.ToLower(string(q.Reason))
	case q.FreeShipping:
		return "free_shipping"
	default:
		return "quoted"
	}
}

func errorType(err error) string {
	var moduleErr *shipping.ModuleError
	if errors.As(err, &moduleErr) {
		return strings.ToLower(moduleErr.Code)
	}
	return "unknown"
}
