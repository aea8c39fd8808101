package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tournevent/shipquote/pkg/shipping"
	"gopkg.in/yaml.v3"
)

// StoreFile is the YAML layout of a store file.
type StoreFile struct {
	Stores []StoreEntry `yaml:"stores"`
}

// StoreEntry is a store with its shipping setup.
type StoreEntry struct {
	Code                   string                                  `yaml:"code"`
	Name                   string                                  `yaml:"name"`
	Currency               string                                  `yaml:"currency"`
	DefaultLanguage        string                                  `yaml:"defaultLanguage"`
	CurrencyFormatNational bool                                    `yaml:"currencyFormatNational"`
	Address                FileAddress                             `yaml:"address"`
	Shipping               *shipping.MerchantShippingConfiguration `yaml:"shipping"`
	Modules                []shipping.ModuleConfiguration          `yaml:"modules"`
	Origin                 *FileOrigin                             `yaml:"origin"`
}

// FileAddress is an address in a store file.
type FileAddress struct {
	Name         string   `yaml:"name"`
	Company      string   `yaml:"company"`
	Line1        string   `yaml:"line1"`
	Line2        string   `yaml:"line2"`
	City         string   `yaml:"city"`
	ProvinceCode string   `yaml:"provinceCode"`
	PostalCode   string   `yaml:"postalCode"`
	CountryCode  string   `yaml:"countryCode"`
	Phone        string   `yaml:"phone"`
	Latitude     *float64 `yaml:"latitude"`
	Longitude    *float64 `yaml:"longitude"`
}

// Address converts to the shipping address.
func (a FileAddress) Address() shipping.Address {
	addr := shipping.Address(a)
	addr.CountryCode = strings.ToUpper(addr.CountryCode)
	return addr
}

// FileOrigin is a shipping origin override in a store file.
type FileOrigin struct {
	Active  bool        `yaml:"active"`
	Address FileAddress `yaml:"address"`
}

func (e StoreEntry) store() shipping.Store {
	return shipping.Store{
		Code:                   e.Code,
		Name:                   e.Name,
		Address:                e.Address.Address(),
		Currency:               e.Currency,
		DefaultLanguage:        e.DefaultLanguage,
		CurrencyFormatNational: e.CurrencyFormatNational,
	}
}

// FileStore serves stores loaded from YAML. Module configuration changes
// are kept in memory.
type FileStore struct {
	mu      sync.RWMutex
	entries map[string]StoreEntry
}

// LoadFile reads a YAML store file.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML store data.
func ParseFile(data []byte) (*FileStore, error) {
	var f StoreFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: store file: %w", shipping.ErrInvalidConfiguration, err)
	}
	fs := &FileStore{entries: make(map[string]StoreEntry, len(f.Stores))}
	for _, e := range f.Stores {
		if e.Code == "" {
			return nil, fmt.Errorf("%w: store without code", shipping.ErrInvalidConfiguration)
		}
		if _, dup := fs.entries[e.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate store %s", shipping.ErrInvalidConfiguration, e.Code)
		}
		for _, m := range e.Modules {
			if m.ModuleCode == "" {
				return nil, fmt.Errorf("%w: store %s has a module without code", shipping.ErrInvalidConfiguration, e.Code)
			}
		}
		fs.entries[e.Code] = e
	}
	return fs, nil
}

// Codes lists the store codes.
func (f *FileStore) Codes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	codes := make([]string, 0, len(f.entries))
	for code := range f.entries {
		codes = append(codes, code)
	}
	return codes
}

func (f *FileStore) entry(code string) (StoreEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[code]
	if !ok {
		return StoreEntry{}, fmt.Errorf("%w: %s", shipping.ErrStoreNotFound, code)
	}
	return e, nil
}

// Store returns a store by code.
func (f *FileStore) Store(_ context.Context, code string) (shipping.Store, error) {
	e, err := f.entry(code)
	if err != nil {
		return shipping.Store{}, err
	}
	return e.store(), nil
}

// MerchantShippingConfiguration returns the store's shipping configuration
// or the default one.
func (f *FileStore) MerchantShippingConfiguration(_ context.Context, code string) (shipping.MerchantShippingConfiguration, error) {
	e, err := f.entry(code)
	if err != nil {
		return shipping.MerchantShippingConfiguration{}, err
	}
	if e.Shipping == nil {
		return shipping.DefaultShippingConfiguration(), nil
	}
	cfg := *e.Shipping
	cfg.ShipToCountries = append([]string(nil), e.Shipping.ShipToCountries...)
	return cfg, nil
}

// ModuleConfigurations returns copies of the store's module configurations.
func (f *FileStore) ModuleConfigurations(_ context.Context, code string) (map[string]shipping.ModuleConfiguration, error) {
	e, err := f.entry(code)
	if err != nil {
		return nil, err
	}
	modules := make(map[string]shipping.ModuleConfiguration, len(e.Modules))
	for _, m := range e.Modules {
		modules[m.ModuleCode] = copyModule(m)
	}
	return modules, nil
}

// SaveModuleConfiguration replaces a module configuration in memory.
func (f *FileStore) SaveModuleConfiguration(_ context.Context, code string, cfg shipping.ModuleConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[code]
	if !ok {
		return fmt.Errorf("%w: %s", shipping.ErrStoreNotFound, code)
	}
	modules := make([]shipping.ModuleConfiguration, 0, len(e.Modules)+1)
	replaced := false
	for _, m := range e.Modules {
		if m.ModuleCode == cfg.ModuleCode {
			m = cfg
			replaced = true
		}
		modules = append(modules, m)
	}
	if !replaced {
		modules = append(modules, cfg)
	}
	e.Modules = modules
	f.entries[code] = e
	return nil
}

// ShippingOrigin returns the store's origin override.
func (f *FileStore) ShippingOrigin(_ context.Context, code string) (*shipping.ShippingOrigin, error) {
	e, err := f.entry(code)
	if err != nil {
		return nil, err
	}
	if e.Origin == nil {
		return nil, nil
	}
	return &shipping.ShippingOrigin{Active: e.Origin.Active, Address: e.Origin.Address.Address()}, nil
}

// Seed writes every store of the file to the repository.
func (f *FileStore) Seed(ctx context.Context, repo *Repository) error {
	for _, code := range f.Codes() {
		e, err := f.entry(code)
		if err != nil {
			return err
		}
		if err := repo.SaveStore(ctx, e.store()); err != nil {
			return fmt.Errorf("seeding store %s: %w", code, err)
		}
		if e.Shipping != nil {
			if err := repo.SaveShippingConfiguration(ctx, code, *e.Shipping); err != nil {
				return fmt.Errorf("seeding shipping configuration of %s: %w", code, err)
			}
		}
		for _, m := range e.Modules {
			if err := repo.SaveModuleConfiguration(ctx, code, m); err != nil {
				return fmt.Errorf("seeding module %s of %s: %w", m.ModuleCode, code, err)
			}
		}
		if e.Origin != nil {
			origin := shipping.ShippingOrigin{Active: e.Origin.Active, Address: e.Origin.Address.Address()}
			if err := repo.SaveShippingOrigin(ctx, code, origin); err != nil {
				return fmt.Errorf("seeding origin of %s: %w", code, err)
			}
		}
	}
	return nil
}

func copyModule(m shipping.ModuleConfiguration) shipping.ModuleConfiguration {
	if m.IntegrationKeys != nil {
		keys := make(map[string]string, len(m.IntegrationKeys))
		for k, v := range m.IntegrationKeys {
			keys[k] = v
		}
		m.IntegrationKeys = keys
	}
	if m.IntegrationOptions != nil {
		opts := make(map[string][]string, len(m.IntegrationOptions))
		for k, v := range m.IntegrationOptions {
			opts[k] = append([]string(nil), v...)
		}
		m.IntegrationOptions = opts
	}
	return m
}
