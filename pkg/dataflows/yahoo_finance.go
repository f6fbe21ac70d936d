package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
)

// YahooFinanceClient reads daily bars and market capitalisation from Yahoo Finance.
type YahooFinanceClient struct {
	retry    *RetryConfig
	lookback time.Duration
}

// NewYahooFinanceClient creates a new Yahoo Finance client. The finance-go
// backend shares one process-wide HTTP client, so timeout applies globally.
func NewYahooFinanceClient(timeout time.Duration) *YahooFinanceClient {
	if timeout > 0 {
		finance.SetHTTPClient(&http.Client{Timeout: timeout})
	}
	return &YahooFinanceClient{
		retry:    DefaultRetryConfig(),
		lookback: 7 * 24 * time.Hour,
	}
}

func (yf *YahooFinanceClient) Name() string { return "yahoo" }

// LatestQuote returns the most recent daily bar within the lookback window.
func (yf *YahooFinanceClient) LatestQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	var result *Quote
	err := WithRetry(ctx, yf.retry, func() error {
		end := time.Now()
		start := end.Add(-yf.lookback)
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		var last *Quote
		for iter.Next() {
			bar := iter.Bar()
			if bar == nil {
				continue
			}
			q := &Quote{
				Symbol: symbol,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
				Time:   time.Unix(int64(bar.Timestamp), 0),
				Source: yf.Name(),
			}
			// Yahoo reports null prices on partial bars; skip them.
			if !q.Complete() {
				continue
			}
			last = q
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get chart for %s: %w", symbol, err)
		}
		if last == nil {
			return Permanent(fmt.Errorf("%w for %s", ErrNoData, symbol))
		}

		result = last
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Market cap is optional; a failed lookup leaves it absent.
	if eq, err := equity.Get(symbol); err == nil && eq != nil && eq.MarketCap > 0 {
		mc := eq.MarketCap
		result.MarketCap = &mc
	}

	return result, nil
}
