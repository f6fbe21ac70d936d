package agents

import (
	"log/slog"

	"github.com/dyike/TickerGo/internal/cache"
	"github.com/dyike/TickerGo/internal/llm"
	"github.com/dyike/TickerGo/pkg/dataflows"
)

type options struct {
	logger         *slog.Logger
	maxIterations  int
	memoryMaxTurns int
	cache          *cache.Store

	// used by NewFromConfig only
	generator      llm.Generator
	marketProvider dataflows.MarketProvider
	searchProvider dataflows.SearchProvider
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithMemoryMaxTurns bounds conversation retention; 0 keeps everything.
func WithMemoryMaxTurns(n int) Option {
	return func(o *options) { o.memoryMaxTurns = n }
}

// WithCache enables write-through of price snapshots and analyses.
func WithCache(store *cache.Store) Option {
	return func(o *options) { o.cache = store }
}

// WithGenerator replaces the configured chat model.
func WithGenerator(g llm.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithMarketProvider replaces the Yahoo/Longport provider chain.
func WithMarketProvider(p dataflows.MarketProvider) Option {
	return func(o *options) { o.marketProvider = p }
}

// WithSearchProvider replaces the DuckDuckGo search provider.
func WithSearchProvider(p dataflows.SearchProvider) Option {
	return func(o *options) { o.searchProvider = p }
}

func buildOptions(opts []Option) *options {
	o := &options{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
