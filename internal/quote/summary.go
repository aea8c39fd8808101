package quote

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/internal/locale"
	"github.com/tournevent/shipquote/pkg/shipping"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var validate = validator.New()

// Summary builds what an order records about the chosen option. A
// free-shipping quote summarizes to a zero price whatever optionID is.
func (s *Service) Summary(q *shipping.ShippingQuote, optionID string) (shipping.ShippingSummary, error) {
	summary := shipping.ShippingSummary{
		ModuleCode:    q.CurrentModule,
		TaxOnShipping: q.TaxOnShipping,
		FreeShipping:  q.FreeShipping,
		Delivery:      q.Delivery,
		Shipping:      decimal.Zero,
		HandlingFee:   decimal.Zero,
		Total:         decimal.Zero,
	}
	if q.FreeShipping {
		return summary, nil
	}

	var opt *shipping.ShippingOption
	for i := range q.Options {
		if q.Options[i].OptionID == optionID {
			opt = &q.Options[i]
			break
		}
	}
	if opt == nil && optionID == "" {
		opt = q.SelectedOption
	}
	if opt == nil {
		return shipping.ShippingSummary{}, fmt.Errorf("option %q not found in quote", optionID)
	}

	summary.ModuleCode = opt.ModuleCode
	summary.OptionName = opt.OptionName
	summary.Shipping = opt.Price
	summary.HandlingFee = q.HandlingFee
	summary.Total = opt.Price.Add(q.HandlingFee)
	return summary, nil
}

// ShipToCountries lists the countries a store delivers to, named in tag.
// A NATIONAL store lists its own country only.
func (s *Service) ShipToCountries(ctx context.Context, storeCode string, tag language.Tag) ([]locale.Country, error) {
	store, err := s.Stores.Store(ctx, storeCode)
	if err != nil {
		return nil, fmt.Errorf("loading store %s: %w", storeCode, err)
	}
	cfg, err := s.Configs.MerchantShippingConfiguration(ctx, store.Code)
	if err != nil {
		return nil, fmt.Errorf("loading shipping configuration: %w", err)
	}
	if tag == language.Und {
		tag = locale.ParseTag(store.DefaultLanguage, s.DefaultLocale)
	}

	codes := cfg.ShipToCountries
	if cfg.ShippingType != shipping.ShippingInternational {
		if store.Address.CountryCode == "" {
			return nil, fmt.Errorf("%w: store %s", shipping.ErrMissingCountry, store.Code)
		}
		codes = []string{store.Address.CountryCode}
	}
	return s.Countries.Countries(codes, tag), nil
}

// ConfigureModule validates and saves a store's configuration for a
// registered rate module or processor. Region checks apply to rate modules
// only.
func (s *Service) ConfigureModule(ctx context.Context, storeCode string, cfg shipping.ModuleConfiguration) error {
	if s.Writer == nil {
		return fmt.Errorf("%w: configuration is read-only", shipping.ErrRejectedConfiguration)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", shipping.ErrRejectedConfiguration, err)
	}

	var target any
	processor := s.Registry.IsProcessor(cfg.ModuleCode)
	if processor {
		p, err := s.Registry.Processor(cfg.ModuleCode)
		if err != nil {
			return err
		}
		target = p
	} else {
		m, err := s.Registry.Module(cfg.ModuleCode)
		if err != nil {
			return err
		}
		target = m
	}

	store, err := s.Stores.Store(ctx, storeCode)
	if err != nil {
		return fmt.Errorf("loading store %s: %w", storeCode, err)
	}
	if !processor {
		if meta, ok := s.Registry.Metadata(cfg.ModuleCode); ok && !meta.SupportsCountry(store.Address.CountryCode) {
			return fmt.Errorf("%w: %s does not serve %s", shipping.ErrRejectedConfiguration, cfg.ModuleCode, store.Address.CountryCode)
		}
	}
	if v, ok := target.(shipping.ConfigValidator); ok {
		if err := v.ValidateConfiguration(cfg, store); err != nil {
			return fmt.Errorf("%w: %w", shipping.ErrRejectedConfiguration, err)
		}
	}

	if err := s.Writer.SaveModuleConfiguration(ctx, store.Code, cfg); err != nil {
		return fmt.Errorf("saving module configuration: %w", err)
	}
	s.Logger.Ctx(ctx).Info("Shipping module configured",
		zap.String("store", store.Code),
		zap.String("module", cfg.ModuleCode),
		zap.Bool("active", cfg.Active),
		zap.Bool("processor", processor),
	)
	return nil
}
