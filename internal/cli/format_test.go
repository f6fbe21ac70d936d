package cli

import (
	"testing"

	"github.com/dyike/TickerGo/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"153", "$153.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"0", "$0.00"},
	}
	for _, tt := range tests {
		v := decimal.RequireFromString(tt.in)
		assert.Equal(t, tt.want, FormatCurrency(&v), tt.in)
	}
	assert.Equal(t, "N/A", FormatCurrency(nil))
}

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{999, "999"},
		{1_500, "1.50K"},
		{52_300_000, "52.30M"},
		{2_870_000_000_000, "2870.00B"},
		{3_000_000_000, "3.00B"},
	}
	for _, tt := range tests {
		v := tt.in
		assert.Equal(t, tt.want, FormatLargeNumber(&v))
	}
	assert.Equal(t, "N/A", FormatLargeNumber(nil))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+2.00%", formatPercent(decimal.NewFromInt(2)))
	assert.Equal(t, "-1.25%", formatPercent(decimal.RequireFromString("-1.25")))
	assert.Equal(t, "0.00%", formatPercent(decimal.Zero))
}

func TestRenderPrice(t *testing.T) {
	out := RenderPrice(&models.PriceResult{
		Ticker: "AAPL",
		Snapshot: &models.PriceSnapshot{
			Ticker:        "AAPL",
			CurrentPrice:  decimal.NewFromInt(153),
			Open:          decimal.NewFromInt(150),
			High:          decimal.NewFromInt(154),
			Low:           decimal.NewFromInt(149),
			Volume:        1_000_000,
			ChangePercent: decimal.NewFromInt(2),
			Timestamp:     "2024-05-01 20:00:00",
		},
	})
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "$153.00")
	assert.Contains(t, out, "1.00M")
	assert.Contains(t, out, "N/A")

	out = RenderPrice(&models.PriceResult{Ticker: "ZZZZ", Error: &models.ErrorResult{Message: "no data found for ticker"}})
	assert.Contains(t, out, "no data found for ticker")
}

func TestRenderAnalysis(t *testing.T) {
	out := RenderAnalysis(&models.Analysis{
		Ticker:         "AAPL",
		Text:           "Momentum is strong. Recommendation: BUY",
		Recommendation: models.RecommendationBuy,
		Termination:    models.TerminationIterationLimitReached,
		Iterations:     8,
		FallbackUsed:   true,
	})
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "8 iteration(s)")
	assert.Empty(t, RenderAnalysis(nil))
}
