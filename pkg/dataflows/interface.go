package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MarketProvider fetches the latest daily bar for a symbol.
type MarketProvider interface {
	Name() string
	LatestQuote(ctx context.Context, symbol string) (*Quote, error)
}

// SearchProvider runs a web search and returns at most max hits.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]SearchHit, error)
}

// MultiProvider tries each market provider in order and returns the first quote.
type MultiProvider struct {
	providers []MarketProvider
}

func NewMultiProvider(providers ...MarketProvider) *MultiProvider {
	filtered := make([]MarketProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &MultiProvider{providers: filtered}
}

func (m *MultiProvider) Name() string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiProvider) LatestQuote(ctx context.Context, symbol string) (*Quote, error) {
	if len(m.providers) == 0 {
		return nil, errors.New("no market data provider configured")
	}

	var errs []error
	for _, p := range m.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := p.LatestQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, errors.Join(errs...)
}
