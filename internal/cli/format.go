package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const notAvailable = "N/A"

// FormatCurrency renders a dollar amount with thousands separators.
func FormatCurrency(v *decimal.Decimal) string {
	if v == nil {
		return notAvailable
	}
	return "$" + humanize.FormatFloat("#,###.##", v.InexactFloat64())
}

// FormatLargeNumber abbreviates volumes and market caps with K/M/B suffixes.
func FormatLargeNumber(v *int64) string {
	if v == nil {
		return notAvailable
	}
	n := *v
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatPercent(v decimal.Decimal) string {
	s := v.StringFixed(2) + "%"
	if v.IsPositive() {
		return "+" + s
	}
	return s
}
