package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tournevent/shipquote/pkg/shipping"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the gorm backed store of shipping data.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a gorm DB to shipping data operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Store loads a store by code.
func (r *Repository) Store(ctx context.Context, code string) (shipping.Store, error) {
	var rec StoreRecord
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shipping.Store{}, fmt.Errorf("%w: %s", shipping.ErrStoreNotFound, code)
	}
	if err != nil {
		return shipping.Store{}, fmt.Errorf("loading store %s: %w", code, err)
	}
	return rec.toStore(), nil
}

// SaveStore creates or updates a store.
func (r *Repository) SaveStore(ctx context.Context, store shipping.Store) error {
	rec := storeRecord(store)
	return r.db.WithContext(ctx).Save(&rec).Error
}

// MerchantShippingConfiguration loads the store's shipping configuration,
// or the default configuration when none is saved.
func (r *Repository) MerchantShippingConfiguration(ctx context.Context, storeCode string) (shipping.MerchantShippingConfiguration, error) {
	cfg := shipping.DefaultShippingConfiguration()
	found, err := r.loadJSON(ctx, storeCode, KeyShippingConfig, &cfg)
	if err != nil {
		return shipping.MerchantShippingConfiguration{}, err
	}
	if !found {
		return shipping.DefaultShippingConfiguration(), nil
	}
	return cfg, nil
}

// SaveShippingConfiguration stores the shipping configuration.
func (r *Repository) SaveShippingConfiguration(ctx context.Context, storeCode string, cfg shipping.MerchantShippingConfiguration) error {
	return r.saveJSON(ctx, storeCode, KeyShippingConfig, cfg)
}

// ModuleConfigurations loads the module configurations keyed by module code.
func (r *Repository) ModuleConfigurations(ctx context.Context, storeCode string) (map[string]shipping.ModuleConfiguration, error) {
	modules := make(map[string]shipping.ModuleConfiguration)
	if _, err := r.loadJSON(ctx, storeCode, KeyShippingModules, &modules); err != nil {
		return nil, err
	}
	for code, cfg := range modules {
		cfg.ModuleCode = code
		modules[code] = cfg
	}
	return modules, nil
}

// SaveModuleConfiguration replaces one module's configuration.
func (r *Repository) SaveModuleConfiguration(ctx context.Context, storeCode string, cfg shipping.ModuleConfiguration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &Repository{db: tx}
		modules, err := repo.ModuleConfigurations(ctx, storeCode)
		if err != nil {
			return err
		}
		modules[cfg.ModuleCode] = cfg
		return repo.saveJSON(ctx, storeCode, KeyShippingModules, modules)
	})
}

// ShippingOrigin loads the store's origin override, nil when none is saved.
func (r *Repository) ShippingOrigin(ctx context.Context, storeCode string) (*shipping.ShippingOrigin, error) {
	var rec ShippingOriginRecord
	err := r.db.WithContext(ctx).Where("store_code = ?", storeCode).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading shipping origin: %w", err)
	}
	return &shipping.ShippingOrigin{Active: rec.Active, Address: rec.Address.toAddress()}, nil
}

// SaveShippingOrigin creates or updates the origin override.
func (r *Repository) SaveShippingOrigin(ctx context.Context, storeCode string, origin shipping.ShippingOrigin) error {
	rec := ShippingOriginRecord{StoreCode: storeCode, Active: origin.Active, Address: addressColumns(origin.Address)}
	return r.db.WithContext(ctx).Save(&rec).Error
}

// PersistQuote inserts a quote and returns its id.
func (r *Repository) PersistQuote(ctx context.Context, q *shipping.Quote) (string, error) {
	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := QuoteRecord{
		ID:            id,
		CartID:        q.CartID,
		StoreCode:     q.StoreCode,
		CustomerID:    q.CustomerID,
		ModuleCode:    q.ModuleCode,
		OptionCode:    q.OptionCode,
		OptionName:    q.OptionName,
		Price:         q.Price,
		HandlingFee:   q.HandlingFee,
		FreeShipping:  q.FreeShipping,
		TaxOnShipping: q.TaxOnShipping,
		EstimatedDays: q.EstimatedDays,
		DeliveryDate:  q.DeliveryDate,
		Delivery:      addressColumns(q.Delivery),
		IPAddress:     q.IPAddress,
		QuoteDate:     q.QuoteDate,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("inserting quote: %w", err)
	}
	return id, nil
}

// QuotesForCart lists the quotes recorded for a cart, oldest first.
func (r *Repository) QuotesForCart(ctx context.Context, storeCode, cartID string) ([]shipping.Quote, error) {
	var recs []QuoteRecord
	err := r.db.WithContext(ctx).
		Where("store_code = ? AND cart_id = ?", storeCode, cartID).
		Order("quote_date ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}
	quotes := make([]shipping.Quote, len(recs))
	for i, rec := range recs {
		quotes[i] = rec.toQuote()
	}
	return quotes, nil
}

func (r *Repository) loadJSON(ctx context.Context, storeCode, key string, out any) (bool, error) {
	var rec MerchantConfigurationRecord
	err := r.db.WithContext(ctx).
		Where("store_code = ? AND config_key = ?", storeCode, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(rec.Value), out); err != nil {
		return false, fmt.Errorf("%w: %s for store %s: %w", shipping.ErrInvalidConfiguration, key, storeCode, err)
	}
	return true, nil
}

func (r *Repository) saveJSON(ctx context.Context, storeCode, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	rec := MerchantConfigurationRecord{StoreCode: storeCode, Key: key, Value: string(data)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_code"}, {Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}
