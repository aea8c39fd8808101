// Package rules evaluates merchant-authored JsonLogic rules against a
// quote. It provides the customQuotesRules rate module and the decision
// table pre-processor.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/shopspring/decimal"
	"github.com/tournevent/shipquote/pkg/shipping"
)

// KeyRule is the integration key holding the JsonLogic rule.
const KeyRule = "rule"

// Data is the set of variables rules can read.
func Data(qc *shipping.QuoteContext) map[string]any {
	total, _ := qc.OrderTotal.Float64()
	data := map[string]any{
		"weight":     qc.TotalWeight(),
		"total":      total,
		"country":    qc.Delivery.CountryCode,
		"zone":       qc.Delivery.ProvinceCode,
		"postalCode": strings.ToUpper(strings.ReplaceAll(qc.Delivery.PostalCode, " ", "")),
		"city":       qc.Delivery.City,
		"packages":   len(qc.Packages),
		"store":      qc.Store.Code,
		"module":     qc.Quote.CurrentModule,
	}
	if d, ok := qc.Quote.Distance(); ok {
		data["distance"] = d
	}
	return data
}

// Evaluate applies rule to data. A null result is returned as nil.
func Evaluate(rule string, data map[string]any) (any, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, fmt.Errorf("empty rule")
	}
	if !json.Valid([]byte(rule)) {
		return nil, fmt.Errorf("rule is not valid JSON")
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding rule data: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(rule), bytes.NewReader(dataJSON), &out); err != nil {
		return nil, fmt.Errorf("applying rule: %w", err)
	}

	result := bytes.TrimSpace(out.Bytes())
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(result))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding rule result: %w", err)
	}
	return v, nil
}

// Validate checks a rule parses and evaluates against empty data.
func Validate(rule string) error {
	_, err := Evaluate(rule, map[string]any{})
	return err
}

// toPrice converts a numeric rule result. ok is false for false and empty
// results, which mean the rule offers nothing.
func toPrice(v any) (decimal.Decimal, bool, error) {
	switch r := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case bool:
		if !r {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("rule returned true, expected a price")
	case json.Number:
		d, err := decimal.NewFromString(r.String())
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("rule returned %q: %w", r, err)
		}
		return d, true, nil
	case string:
		if r == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(r)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("rule returned %q, expected a price", r)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("rule returned %T, expected a price", v)
	}
}
