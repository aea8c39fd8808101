package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/shipquote/internal/config"
	"github.com/tournevent/shipquote/internal/locale"
	"github.com/tournevent/shipquote/internal/pricing"
	"github.com/tournevent/shipquote/internal/quote"
	"github.com/tournevent/shipquote/internal/server"
	"github.com/tournevent/shipquote/internal/storage"
	"github.com/tournevent/shipquote/pkg/shipping"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shipquote",
	Short:   "Shipping quote service for merchant stores",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Compute shipping quotes for the requests in a JSON file",
	RunE:  runQuote,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  runMigrate,
}

var (
	quoteFile   string
	migrateSeed bool
)

func init() {
	quoteCmd.Flags().StringVarP(&quoteFile, "file", "f", "", "JSON file holding an array of quote requests")
	_ = quoteCmd.MarkFlagRequired("file")
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "load the stores of STORE_CONFIG_FILE into the database")

	rootCmd.AddCommand(serveCmd, quoteCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	b, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	metrics, gatherer := initMetrics()
	registry := initRegistry(cfg, metrics, logger, tracer)
	service := initService(cfg, b, registry, metrics, logger, tracer)

	logger.Info("Starting shipping quote service",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.Strings("modules", registry.Codes()),
	)

	srv := server.New(server.Config{Port: cfg.Port, Gatherer: gatherer}, service, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DatabaseDriver == config.DriverFile {
		return fmt.Errorf("migrate needs a database driver, not %q", cfg.DatabaseDriver)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	logger.Info("Database migrated", zap.String("driver", cfg.DatabaseDriver))

	if !migrateSeed {
		return nil
	}
	if cfg.StoreConfigFile == "" {
		return fmt.Errorf("--seed needs STORE_CONFIG_FILE")
	}
	files, err := storage.LoadFile(cfg.StoreConfigFile)
	if err != nil {
		return err
	}
	if err := files.Seed(ctx, storage.NewRepository(db)); err != nil {
		return err
	}
	logger.Info("Stores seeded",
		zap.String("file", cfg.StoreConfigFile),
		zap.Strings("stores", files.Codes()),
	)
	return nil
}

// quoteInput is one request of the quote command's file.
type quoteInput struct {
	Store    string           `json:"store"`
	CartID   string           `json:"cartId"`
	Locale   string           `json:"locale"`
	Delivery shipping.Address `json:"delivery"`
	Items    []quoteInputItem `json:"items"`
}

type quoteInputItem struct {
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	Price     string  `json:"price"`
	Weight    float64 `json:"weight"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Shippable *bool   `json:"shippable"`
}

type quoteOutput struct {
	Store   string                    `json:"store"`
	CartID  string                    `json:"cartId"`
	Quote   *shipping.ShippingQuote   `json:"quote,omitempty"`
	Summary *shipping.ShippingSummary `json:"summary,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func (in quoteInput) request() (quote.Request, error) {
	items := make([]shipping.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		price, err := pricing.ParseAmount(it.Price)
		if err != nil {
			return quote.Request{}, fmt.Errorf("item %s: %w", it.SKU, err)
		}
		shippable := it.Shippable == nil || *it.Shippable
		items = append(items, shipping.LineItem{
			SKU:        it.SKU,
			Quantity:   it.Quantity,
			FinalPrice: price,
			Weight:     it.Weight,
			Length:     it.Length,
			Width:      it.Width,
			Height:     it.Height,
			Shippable:  shippable,
		})
	}
	return quote.Request{
		CartID:    in.CartID,
		StoreCode: in.Store,
		Delivery:  in.Delivery,
		Items:     items,
		Locale:    locale.ParseTag(in.Locale, language.Und),
	}, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(quoteFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", quoteFile, err)
	}
	var inputs []quoteInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("parsing %s: %w", quoteFile, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	metrics, _ := initMetrics()
	tracer := otel.Tracer(cfg.ServiceName)
	registry := initRegistry(cfg, metrics, logger, tracer)
	service := initService(cfg, b, registry, metrics, logger, tracer)

	outputs := make([]quoteOutput, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			out := quoteOutput{Store: in.Store, CartID: in.CartID}
			defer func() { outputs[i] = out }()

			req, err := in.request()
			if err != nil {
				out.Error = err.Error()
				return nil
			}
			q, err := service.GetShippingQuote(gctx, req)
			if err != nil {
				out.Error = err.Error()
				return nil
			}
			out.Quote = q
			if q.FreeShipping || q.SelectedOption != nil {
				if summary, err := service.Summary(q, ""); err == nil {
					out.Summary = &summary
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}
