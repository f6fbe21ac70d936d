package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"
)

type LongportConfig struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg LongportConfig) (*LongportClient, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{
		quoteCtx: quoteContext,
	}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

func (lpc *LongportClient) GetSticksWithDay(ctx context.Context, symbol string, count int) ([]*quote.Candlestick, error) {
	if lpc.quoteCtx != nil {
		return lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	}
	return nil, errors.New("quote context is nil")
}

// LatestQuote returns the newest daily candlestick. Longport has no market
// capitalisation on candlesticks, so MarketCap stays nil.
func (lpc *LongportClient) LatestQuote(ctx context.Context, symbol string) (q *Quote, err error) {
	symbol = NormalizeSymbol(symbol)
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("longport candlestick for %s: %v", symbol, r)
		}
	}()

	sticks, err := lpc.GetSticksWithDay(ctx, symbol, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to get candlesticks for %s: %w", symbol, err)
	}
	if len(sticks) == 0 || sticks[len(sticks)-1] == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	stick := sticks[len(sticks)-1]

	open, err := decimal.NewFromString(stick.Open.String())
	if err != nil {
		return nil, err
	}
	high, err := decimal.NewFromString(stick.High.String())
	if err != nil {
		return nil, err
	}
	low, err := decimal.NewFromString(stick.Low.String())
	if err != nil {
		return nil, err
	}
	closePrice, err := decimal.NewFromString(stick.Close.String())
	if err != nil {
		return nil, err
	}

	return &Quote{
		Symbol: symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: stick.Volume,
		Time:   time.Unix(stick.Timestamp, 0),
		Source: lpc.Name(),
	}, nil
}
