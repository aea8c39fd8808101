// Package locale resolves localized country names.
package locale

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Country is an ISO country with its localized name.
type Country struct {
	Code string
	Name string
}

// CountryResolver looks up country names from CLDR data.
type CountryResolver struct{}

// NewCountryResolver creates a resolver.
func NewCountryResolver() *CountryResolver {
	return &CountryResolver{}
}

// CountryName returns the name of the ISO code in locale. ok is false when
// the code is unknown or CLDR has no name for it.
func (r *CountryResolver) CountryName(isoCode string, locale language.Tag) (string, bool) {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(isoCode)))
	if err != nil || !region.IsCountry() {
		return "", false
	}
	name := display.Regions(locale).Name(region)
	if name == "" {
		return "", false
	}
	return name, true
}

// Countries returns the named countries for the codes, sorted by name.
// Unknown codes keep the code as name.
func (r *CountryResolver) Countries(codes []string, locale language.Tag) []Country {
	result := make([]Country, 0, len(codes))
	for _, code := range codes {
		name, ok := r.CountryName(code, locale)
		if !ok {
			name = code
		}
		result = append(result, Country{Code: strings.ToUpper(code), Name: name})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ParseTag parses a BCP 47 language, falling back when empty or invalid.
func ParseTag(lang string, fallback language.Tag) language.Tag {
	if lang == "" {
		return fallback
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fallback
	}
	return tag
}
