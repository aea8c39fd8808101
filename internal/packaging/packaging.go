// Package packaging turns cart line items into shipping packages.
package packaging

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// Builder builds packages by item or by box.
type Builder struct{}

// NewBuilder creates a package builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildPackages groups the shippable items according to the store's package
// strategy. Items that do not ship are ignored.
func (b *Builder) BuildPackages(items []shipping.LineItem, cfg shipping.MerchantShippingConfiguration) ([]shipping.PackageDetails, error) {
	for _, item := range items {
		if item.Quantity < 0 || item.Weight < 0 || item.Length < 0 || item.Width < 0 || item.Height < 0 {
			return nil, fmt.Errorf("%w: item %s has negative quantity or measures", shipping.ErrInvalidPackage, item.SKU)
		}
	}

	switch cfg.PackageStrategy {
	case shipping.PackageByBox:
		return byBox(items, cfg)
	case shipping.PackageByItem, "":
		return byItem(items), nil
	default:
		return nil, fmt.Errorf("%w: unknown package strategy %q", shipping.ErrInvalidConfiguration, cfg.PackageStrategy)
	}
}

func byItem(items []shipping.LineItem) []shipping.PackageDetails {
	var packages []shipping.PackageDetails
	for _, item := range items {
		if !item.Shippable {
			continue
		}
		for i := 0; i < item.Quantity; i++ {
			packages = append(packages, shipping.PackageDetails{
				ID:            fmt.Sprintf("%s-%d", item.SKU, i+1),
				Length:        item.Length,
				Width:         item.Width,
				Height:        item.Height,
				Weight:        item.Weight,
				DeclaredValue: item.FinalPrice,
				ItemCount:     1,
				Description:   item.SKU,
			})
		}
	}
	return packages
}

type box struct {
	pkg    shipping.PackageDetails
	volume float64
}

// byBox packs each unit into the first open box with enough weight and
// volume left, opening a new box when none fits.
func byBox(items []shipping.LineItem, cfg shipping.MerchantShippingConfiguration) ([]shipping.PackageDetails, error) {
	if cfg.BoxLength <= 0 || cfg.BoxWidth <= 0 || cfg.BoxHeight <= 0 || cfg.BoxMaxWeight <= 0 {
		return nil, fmt.Errorf("%w: box dimensions and max weight are required", shipping.ErrInvalidConfiguration)
	}
	capacity := cfg.BoxLength * cfg.BoxWidth * cfg.BoxHeight

	var boxes []*box
	for _, item := range items {
		if !item.Shippable {
			continue
		}
		volume := item.Length * item.Width * item.Height
		if item.Weight > cfg.BoxMaxWeight {
			return nil, fmt.Errorf("%w: item %s weighs %.2f, box max is %.2f",
				shipping.ErrInvalidPackage, item.SKU, item.Weight, cfg.BoxMaxWeight)
		}
		if volume > capacity {
			return nil, fmt.Errorf("%w: item %s does not fit in the box", shipping.ErrInvalidPackage, item.SKU)
		}

		for i := 0; i < item.Quantity; i++ {
			target := firstFit(boxes, item.Weight, volume, cfg.BoxMaxWeight, capacity)
			if target == nil {
				target = &box{pkg: shipping.PackageDetails{
					ID:            fmt.Sprintf("box-%d", len(boxes)+1),
					Length:        cfg.BoxLength,
					Width:         cfg.BoxWidth,
					Height:        cfg.BoxHeight,
					DeclaredValue: decimal.Zero,
				}}
				boxes = append(boxes, target)
			}
			target.pkg.Weight += item.Weight
			target.pkg.DeclaredValue = target.pkg.DeclaredValue.Add(item.FinalPrice)
			target.pkg.ItemCount++
			target.volume += volume
		}
	}

	packages := make([]shipping.PackageDetails, len(boxes))
	for i, b := range boxes {
		packages[i] = b.pkg
	}
	return packages, nil
}

func firstFit(boxes []*box, weight, volume, maxWeight, capacity float64) *box {
	for _, b := range boxes {
		if b.pkg.Weight+weight <= maxWeight && b.volume+volume <= capacity {
			return b
		}
	}
	return nil
}
