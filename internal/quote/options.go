package quote

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tournevent/shipquote/pkg/shipping"
	"golang.org/x/text/language"
)

// decorateOptions fills in the fields every option carries regardless of
// the module that produced it.
func (s *Service) decorateOptions(options []shipping.ShippingOption, module string, store shipping.Store, country string, tag language.Tag) error {
	var countryName string
	for i := range options {
		opt := &options[i]
		if opt.OptionID == "" {
			opt.OptionID = uuid.NewString()
		}
		opt.ModuleCode = module

		if s.Formatter != nil {
			text, err := s.Formatter.Format(store, opt.Price)
			if err != nil {
				return fmt.Errorf("formatting option %s: %w", opt.OptionID, err)
			}
			opt.PriceText = text
		}

		if opt.OptionName == "" {
			if countryName == "" {
				countryName = s.countryName(country, tag)
			}
			opt.OptionName = countryName
		}
	}
	return nil
}

func (s *Service) countryName(iso string, tag language.Tag) string {
	if s.Countries == nil {
		return iso
	}
	if name, ok := s.Countries.CountryName(iso, tag); ok {
		return name
	}
	return iso
}

// SelectOptions applies the selection policy. It returns the options kept
// and the index of the selected one within them. options must not be empty.
func SelectOptions(options []shipping.ShippingOption, policy shipping.SelectionPolicy) ([]shipping.ShippingOption, int) {
	switch policy {
	case shipping.SelectAll:
		kept := make([]shipping.ShippingOption, len(options))
		copy(kept, options)
		return kept, 0
	case shipping.SelectMostExpensive:
		best := 0
		for i := 1; i < len(options); i++ {
			if options[i].Price.GreaterThan(options[best].Price) {
				best = i
			}
		}
		return []shipping.ShippingOption{options[best]}, 0
	default:
		best := 0
		for i := 1; i < len(options); i++ {
			if options[i].Price.LessThan(options[best].Price) {
				best = i
			}
		}
		return []shipping.ShippingOption{options[best]}, 0
	}
}

func (s *Service) stampDelivery(options []shipping.ShippingOption) {
	now := s.Now()
	for i := range options {
		if options[i].EstimatedDays <= 0 || options[i].DeliveryDate != nil {
			continue
		}
		date := now.AddDate(0, 0, options[i].EstimatedDays)
		options[i].DeliveryDate = &date
	}
}

func findOption(options []shipping.ShippingOption, id string) *shipping.ShippingOption {
	for i := range options {
		if options[i].OptionID == id {
			return &options[i]
		}
	}
	if len(options) > 0 {
		return &options[0]
	}
	return nil
}
