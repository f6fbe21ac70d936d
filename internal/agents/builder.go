package agents

import (
	"context"

	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/cache"
	"github.com/dyike/TickerGo/internal/llm"
	"github.com/dyike/TickerGo/internal/tools"
	"github.com/dyike/TickerGo/pkg/dataflows"
)

// NewFromConfig validates cfg and wires the chat model, data providers,
// tools and cache into a StockAgent. Configuration errors, including a
// missing API key, are returned before any provider or tool is built.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*StockAgent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	logger := o.logger

	generator := o.generator
	if generator == nil {
		g, err := llm.NewGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		generator = g
	}

	marketProvider := o.marketProvider
	if marketProvider == nil {
		providers := []dataflows.MarketProvider{dataflows.NewYahooFinanceClient(cfg.ToolTimeout)}
		if cfg.LongportConfigured() {
			lp, err := dataflows.NewLongportClient(dataflows.LongportConfig{
				AppKey:      cfg.LongportAppKey,
				AppSecret:   cfg.LongportAppSecret,
				AccessToken: cfg.LongportAccessToken,
			})
			if err != nil {
				logger.Warn("longport provider disabled", "error", err)
			} else {
				providers = append(providers, lp)
			}
		}
		marketProvider = dataflows.NewMultiProvider(providers...)
	}

	searchProvider := o.searchProvider
	if searchProvider == nil {
		searchProvider = dataflows.NewDuckDuckGoClient("", cfg.ToolTimeout)
	}

	market := tools.NewMarketDataTool(marketProvider, cfg.ToolTimeout, logger)
	search := tools.NewWebSearchTool(searchProvider, cfg.EffectiveSearchMax(), cfg.ToolTimeout, logger)

	agentOpts := []Option{
		WithLogger(logger),
		WithMaxIterations(cfg.MaxIterations),
		WithMemoryMaxTurns(cfg.MemoryMaxTurns),
	}
	if cfg.CacheEnabled && o.cache == nil {
		agentOpts = append(agentOpts, WithCache(cache.NewStore(cfg.DataCacheDir)))
	}
	agentOpts = append(agentOpts, opts...)

	logger.Info("stock agent configured",
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"market_data", marketProvider.Name(),
		"search", searchProvider.Name(),
		"max_iterations", cfg.MaxIterations,
		"cache", cfg.CacheEnabled,
	)

	return New(ctx, generator, market, search, agentOpts...)
}
