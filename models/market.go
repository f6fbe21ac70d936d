package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the display format of PriceSnapshot.Timestamp.
const TimestampLayout = time.DateTime

// PriceSnapshot is a rounded view of a ticker's most recent trading bar.
type PriceSnapshot struct {
	Ticker        string          `json:"ticker"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        int64           `json:"volume"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	MarketCap     *int64          `json:"market_cap,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

type priceSnapshotJSON struct {
	Ticker        string      `json:"ticker"`
	CurrentPrice  json.Number `json:"current_price"`
	Open          json.Number `json:"open"`
	High          json.Number `json:"high"`
	Low           json.Number `json:"low"`
	Volume        int64       `json:"volume"`
	ChangePercent json.Number `json:"change_percent"`
	MarketCap     *int64      `json:"market_cap,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

// MarshalJSON writes prices as JSON numbers with two decimal places.
func (p PriceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceSnapshotJSON{
		Ticker:        p.Ticker,
		CurrentPrice:  json.Number(p.CurrentPrice.StringFixed(2)),
		Open:          json.Number(p.Open.StringFixed(2)),
		High:          json.Number(p.High.StringFixed(2)),
		Low:           json.Number(p.Low.StringFixed(2)),
		Volume:        p.Volume,
		ChangePercent: json.Number(p.ChangePercent.StringFixed(2)),
		MarketCap:     p.MarketCap,
		Timestamp:     p.Timestamp,
	})
}

func (p *PriceSnapshot) UnmarshalJSON(data []byte) error {
	var raw priceSnapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parse := func(n json.Number) (decimal.Decimal, error) {
		if n == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(n.String())
	}

	var errs []error
	current, err := parse(raw.CurrentPrice)
	errs = append(errs, err)
	open, err := parse(raw.Open)
	errs = append(errs, err)
	high, err := parse(raw.High)
	errs = append(errs, err)
	low, err := parse(raw.Low)
	errs = append(errs, err)
	change, err := parse(raw.ChangePercent)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	*p = PriceSnapshot{
		Ticker:        raw.Ticker,
		CurrentPrice:  current,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        raw.Volume,
		ChangePercent: change,
		MarketCap:     raw.MarketCap,
		Timestamp:     raw.Timestamp,
	}
	return nil
}

// ErrorResult describes why no PriceSnapshot could be produced.
type ErrorResult struct {
	Ticker  string `json:"ticker,omitempty"`
	Message string `json:"error"`
}

func (e *ErrorResult) Error() string {
	if e.Ticker == "" {
		return e.Message
	}
	return e.Ticker + ": " + e.Message
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// ChangePercent returns (close-open)/open*100 rounded to two places.
// Callers must ensure open is non-zero.
func ChangePercent(open, close decimal.Decimal) decimal.Decimal {
	return close.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).Round(2)
}
