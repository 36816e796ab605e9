package etl

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount normalizes a monetary string that may use commas or dots as
// decimal or thousands separators, as the source systems disagree on format:
//
//	"1,200.50" -> 1200.50   (comma is a thousands separator)
//	"1200,50"  -> 1200.50   (comma is the decimal separator)
//	"1200.50"  -> 1200.50
//
// An empty string parses as zero; anything else unparsable is a row error.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, " ", "")

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		s = strings.ReplaceAll(s, ",", "")
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &RowError{Reason: "unparsable amount " + raw, Err: err}
	}
	return d, nil
}

// ParsePercent parses a discount percentage with the same separator rules as
// ParseAmount and clamps it to [0, 100]
func ParsePercent(raw string) (decimal.Decimal, error) {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	hundred := decimal.NewFromInt(100)
	if d.IsNegative() {
		return decimal.Zero, nil
	}
	if d.GreaterThan(hundred) {
		return hundred, nil
	}
	return d, nil
}
