package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tournevent/shipquote/internal/config"
	"github.com/tournevent/shipquote/internal/locale"
	"github.com/tournevent/shipquote/internal/packaging"
	"github.com/tournevent/shipquote/internal/pricing"
	"github.com/tournevent/shipquote/internal/quote"
	"github.com/tournevent/shipquote/internal/storage"
	"github.com/tournevent/shipquote/internal/telemetry"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/canadapost"
	"github.com/tournevent/shipquote/pkg/shipping/freightcom"
	"github.com/tournevent/shipquote/pkg/shipping/pricebydistance"
	"github.com/tournevent/shipquote/pkg/shipping/processors"
	"github.com/tournevent/shipquote/pkg/shipping/purolator"
	"github.com/tournevent/shipquote/pkg/shipping/rules"
	"github.com/tournevent/shipquote/pkg/shipping/storepickup"
	"github.com/tournevent/shipquote/pkg/shipping/weightbased"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return otel.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Attributes()...)
}

func initRegistry(cfg *config.Config, metrics *telemetry.Metrics, logger *otelzap.Logger, tracer trace.Tracer) *shipping.Registry {
	registry := shipping.NewRegistry()

	registry.Register(weightbased.New(), weightbased.Metadata())
	registry.Register(pricebydistance.New(), pricebydistance.Metadata())
	registry.Register(storepickup.New(), storepickup.Metadata())
	registry.Register(rules.NewModule(), rules.ModuleMetadata())

	if cfg.CanadaPostEnabled {
		cp := canadapost.New(canadapost.Config{
			BaseURL: cfg.CanadaPostBaseURL,
			UseMock: cfg.CanadaPostUseMock,
			Timeout: cfg.CanadaPostTimeout,
		}, logger, tracer)
		registry.Register(cp, canadapost.Metadata())
	}
	if cfg.PurolatorEnabled {
		pl := purolator.New(purolator.Config{
			BaseURL: cfg.PurolatorBaseURL,
			UseMock: cfg.PurolatorUseMock,
			Timeout: cfg.PurolatorTimeout,
		}, logger, tracer)
		registry.Register(pl, purolator.Metadata())
	}
	if cfg.FreightcomEnabled {
		fc := freightcom.New(freightcom.Config{
			APIKey:      cfg.FreightcomAPIKey,
			BaseURL:     cfg.FreightcomBaseURL,
			UseMock:     cfg.FreightcomUseMock,
			PollTimeout: cfg.FreightcomTimeout,
		}, logger, tracer)
		registry.Register(fc, freightcom.Metadata())
	}

	registry.RegisterProcessor(processors.NewDistance(), shipping.PhasePre)
	registry.RegisterProcessor(rules.NewDecisionTable(), shipping.PhasePre)
	registry.RegisterProcessor(processors.NewAnalytics(metrics), shipping.PhasePost)

	return registry
}

// backend is where stores, configurations and quotes live.
type backend struct {
	stores interface {
		quote.StoreLoader
		quote.ConfigurationLoader
		quote.ConfigurationWriter
		quote.OriginResolver
	}
	persister quote.QuotePersister
	close     func() error
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}

// initBackend serves stores from the YAML file when the driver is "file",
// from the database otherwise.
func initBackend(cfg *config.Config) (*backend, error) {
	if cfg.DatabaseDriver == config.DriverFile {
		if cfg.StoreConfigFile == "" {
			return nil, fmt.Errorf("STORE_CONFIG_FILE is required with the %s driver", config.DriverFile)
		}
		files, err := storage.LoadFile(cfg.StoreConfigFile)
		if err != nil {
			return nil, err
		}
		return &backend{stores: files, persister: storage.NewMemoryQuotes(), close: func() error { return nil }}, nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	repo := storage.NewRepository(db)
	return &backend{
		stores:    repo,
		persister: repo,
		close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

func initService(cfg *config.Config, b *backend, registry *shipping.Registry, metrics *telemetry.Metrics, logger *otelzap.Logger, tracer trace.Tracer) *quote.Service {
	defaultLocale := locale.ParseTag(cfg.DefaultLanguage, language.English)
	return quote.NewService(quote.Dependencies{
		Registry:      registry,
		Stores:        b.stores,
		Configs:       b.stores,
		Writer:        b.stores,
		Origins:       b.stores,
		Packager:      packaging.NewBuilder(),
		Persister:     b.persister,
		Countries:     locale.NewCountryResolver(),
		Formatter:     pricing.NewFormatter(defaultLocale),
		Metrics:       metrics,
		Logger:        logger,
		Tracer:        tracer,
		DefaultLocale: defaultLocale,
	})
}

func initMetrics() (*telemetry.Metrics, prometheus.Gatherer) {
	return telemetry.NewMetrics(prometheus.DefaultRegisterer), prometheus.DefaultGatherer
}
