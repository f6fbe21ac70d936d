package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/internal/metrics"
	"github.com/dyike/TickerGo/models"
	"github.com/dyike/TickerGo/pkg/dataflows"
)

const StockPriceToolName = "get_stock_price"

// MarketDataTool turns provider quotes into rounded price snapshots.
type MarketDataTool struct {
	provider dataflows.MarketProvider
	timeout  time.Duration
	logger   *slog.Logger
}

var _ tool.InvokableTool = (*MarketDataTool)(nil)

func NewMarketDataTool(provider dataflows.MarketProvider, timeout time.Duration, logger *slog.Logger) *MarketDataTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketDataTool{provider: provider, timeout: timeout, logger: logger}
}

// Fetch returns the latest snapshot for ticker. Every failure, including a
// provider panic, is reported through the ErrorResult.
func (m *MarketDataTool) Fetch(ctx context.Context, ticker string) (snap *models.PriceSnapshot, errRes *models.ErrorResult) {
	ticker = dataflows.NormalizeSymbol(ticker)
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			errRes = &models.ErrorResult{Ticker: ticker, Message: fmt.Sprintf("market data provider failed: %v", r)}
		}
		metrics.ToolCalls.WithLabelValues(StockPriceToolName, statusOf(errRes)).Inc()
		if errRes != nil {
			m.logger.Warn("market data lookup failed", "ticker", ticker, "error", errRes.Message)
		}
	}()

	if ticker == "" {
		return nil, &models.ErrorResult{Message: "ticker must not be empty"}
	}
	if m.provider == nil {
		return nil, &models.ErrorResult{Ticker: ticker, Message: "no market data provider configured"}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	q, err := m.provider.LatestQuote(ctx, ticker)
	if err != nil {
		return nil, &models.ErrorResult{Ticker: ticker, Message: fmt.Sprintf("error fetching stock price: %v", err)}
	}
	return SnapshotFromQuote(ticker, q)
}

// SnapshotFromQuote rounds a provider quote into a PriceSnapshot.
func SnapshotFromQuote(ticker string, q *dataflows.Quote) (*models.PriceSnapshot, *models.ErrorResult) {
	if q == nil {
		return nil, &models.ErrorResult{Ticker: ticker, Message: "no data found for ticker"}
	}
	if !q.Complete() {
		return nil, &models.ErrorResult{Ticker: ticker, Message: "incomplete price data for ticker"}
	}
	if q.Time.IsZero() {
		return nil, &models.ErrorResult{Ticker: ticker, Message: "price data has no timestamp"}
	}

	var marketCap *int64
	if q.MarketCap != nil {
		mc := *q.MarketCap
		marketCap = &mc
	}

	return &models.PriceSnapshot{
		Ticker:        ticker,
		CurrentPrice:  q.Close.Round(2),
		Open:          q.Open.Round(2),
		High:          q.High.Round(2),
		Low:           q.Low.Round(2),
		Volume:        q.Volume,
		ChangePercent: models.ChangePercent(q.Open, q.Close),
		MarketCap:     marketCap,
		Timestamp:     q.Time.Format(models.TimestampLayout),
	}, nil
}

func (m *MarketDataTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: StockPriceToolName,
		Desc: "Get the current stock price and basic market data for a ticker symbol. Input should be a ticker such as AAPL.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"ticker": {
				Type:     schema.String,
				Desc:     "Stock ticker symbol, e.g. AAPL",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun accepts either a bare ticker or {"ticker": "..."} and
// returns the snapshot or error as JSON.
func (m *MarketDataTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	ticker := argumentValue(argumentsInJSON, "ticker", "symbol")
	snap, errRes := m.Fetch(ctx, ticker)

	var out any = snap
	if errRes != nil {
		out = errRes
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func statusOf(errRes *models.ErrorResult) string {
	if errRes != nil {
		return "error"
	}
	return "success"
}
