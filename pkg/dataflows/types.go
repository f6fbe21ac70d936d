package dataflows

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoData is returned when a provider has no recent bar for a symbol.
	ErrNoData = errors.New("no recent price data")
	// ErrEmptyQuery is returned by search providers for blank queries.
	ErrEmptyQuery = errors.New("search query cannot be empty")
)

// Quote is the most recent daily bar of a symbol as reported by a provider.
// Prices are unrounded.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	MarketCap *int64          `json:"market_cap,omitempty"`
	Time      time.Time       `json:"time"`
	Source    string          `json:"source"`
}

// Complete reports whether every OHLC price of the bar is positive.
func (q *Quote) Complete() bool {
	return q != nil &&
		q.Open.IsPositive() &&
		q.High.IsPositive() &&
		q.Low.IsPositive() &&
		q.Close.IsPositive()
}

// SearchHit is one organic web search result in provider rank order.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}
