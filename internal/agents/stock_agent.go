package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dyike/TickerGo/internal/cache"
	"github.com/dyike/TickerGo/internal/llm"
	"github.com/dyike/TickerGo/internal/memory"
	"github.com/dyike/TickerGo/internal/metrics"
	"github.com/dyike/TickerGo/internal/tools"
	"github.com/dyike/TickerGo/internal/utils"
	"github.com/dyike/TickerGo/models"
	"github.com/dyike/TickerGo/pkg/dataflows"
)

const (
	operationPrice    = "price"
	operationAnalysis = "analysis"
)

// ErrInvalidTicker is returned for an empty ticker before any work starts.
var ErrInvalidTicker = errors.New("ticker must not be empty")

// StockAgent answers price and analysis requests. It is single-threaded:
// callers sharing one agent must serialise access.
type StockAgent struct {
	market   *tools.MarketDataTool
	loop     *Loop
	fallback *Fallback
	memory   *memory.Conversation
	cache    *cache.Store
	logger   *slog.Logger
}

func New(ctx context.Context, generator llm.Generator, market *tools.MarketDataTool, search *tools.WebSearchTool, opts ...Option) (*StockAgent, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if market == nil || search == nil {
		return nil, errors.New("market data and web search tools are required")
	}
	o := buildOptions(opts)

	loop, err := NewLoop(generator, tools.NewRegistry(market, search), o.maxIterations, o.logger)
	if err != nil {
		return nil, err
	}
	fallback, err := NewFallback(ctx, generator, o.logger)
	if err != nil {
		return nil, err
	}

	return &StockAgent{
		market:   market,
		loop:     loop,
		fallback: fallback,
		memory:   memory.NewConversation(o.memoryMaxTurns),
		cache:    o.cache,
		logger:   o.logger,
	}, nil
}

// GetStockPrice fetches a snapshot directly and falls back to one loop run
// when the tool reports an error.
func (a *StockAgent) GetStockPrice(ctx context.Context, ticker string) (*models.PriceResult, error) {
	ticker = dataflows.NormalizeSymbol(ticker)
	if ticker == "" {
		return nil, ErrInvalidTicker
	}

	snap, errRes := a.market.Fetch(ctx, ticker)
	if errRes == nil {
		a.saveCache("price_"+ticker, snap)
		return &models.PriceResult{Ticker: ticker, Snapshot: snap}, nil
	}

	result := &models.PriceResult{Ticker: ticker, Error: errRes, Escalated: true}
	a.logger.Info("escalating price request to reasoning loop", "ticker", ticker, "error", errRes.Message)

	request, err := utils.RenderPrompt("price_request", map[string]string{"ticker": ticker})
	if err != nil {
		a.logger.Error("price escalation failed", "ticker", ticker, "error", err)
		return result, nil
	}

	res, err := a.runLoop(ctx, operationPrice, request)
	if err != nil {
		a.logger.Error("price escalation failed", "ticker", ticker, "error", err)
		return result, nil
	}
	if res.Reason != models.TerminationFinished || res.Answer == "" {
		return result, nil
	}

	a.memory.AppendExchange(request, res.Answer)
	result.Answer = res.Answer
	result.Error = nil
	return result, nil
}

// AnalyzeStock returns the analysis text for ticker.
func (a *StockAgent) AnalyzeStock(ctx context.Context, ticker string, price *models.PriceResult) (string, error) {
	analysis, err := a.Analyze(ctx, ticker, price)
	if err != nil {
		return "", err
	}
	return analysis.Text, nil
}

// Analyze runs the reasoning loop under fallback supervision. Failures other
// than input errors are reported in the analysis text.
func (a *StockAgent) Analyze(ctx context.Context, ticker string, price *models.PriceResult) (*models.Analysis, error) {
	ticker = dataflows.NormalizeSymbol(ticker)
	if ticker == "" {
		return nil, ErrInvalidTicker
	}

	analysis, err := a.analyze(ctx, ticker, price)
	if err != nil {
		a.logger.Error("analysis failed", "ticker", ticker, "error", err)
		if analysis == nil {
			analysis = &models.Analysis{Ticker: ticker}
		}
		analysis.Text = fmt.Sprintf("Analysis failed for %s: %s", ticker, err.Error())
		analysis.Recommendation = models.RecommendationNone
		return analysis, nil
	}

	a.saveCache("analysis_"+ticker, analysis)
	return analysis, nil
}

func (a *StockAgent) analyze(ctx context.Context, ticker string, price *models.PriceResult) (analysis *models.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	priceText := price.PromptText()
	request, err := utils.RenderPrompt("analysis_request", map[string]string{
		"ticker":     ticker,
		"price_data": priceText,
	})
	if err != nil {
		return nil, err
	}

	res, err := a.runLoop(ctx, operationAnalysis, request)
	analysis = &models.Analysis{Ticker: ticker}
	if res != nil {
		analysis.Termination = res.Reason
		analysis.Iterations = res.Iterations
		analysis.Steps = res.Steps
	}
	if err != nil {
		return analysis, err
	}

	text := res.Answer
	if trigger := NeedsFallback(res, true); trigger != TriggerNone {
		metrics.Fallbacks.WithLabelValues(string(trigger)).Inc()
		a.logger.Warn("using fallback generation", "ticker", ticker, "trigger", trigger, "iterations", res.Iterations)

		text, err = a.fallback.Generate(ctx, ticker, fallbackPriceData(price, res))
		if err != nil {
			return analysis, err
		}
		analysis.FallbackUsed = true
	}

	analysis.Text = text
	analysis.Recommendation, _ = models.ExtractRecommendation(text)
	a.memory.AppendExchange(request, text)
	return analysis, nil
}

// runLoop runs the reasoning loop with the current history and records metrics.
func (a *StockAgent) runLoop(ctx context.Context, operation, request string) (res *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reasoning loop panic: %v", r)
		}
		reason := "error"
		if err == nil && res != nil {
			reason = string(res.Reason)
		}
		metrics.LoopRuns.WithLabelValues(operation, reason).Inc()
		if res != nil {
			metrics.LoopIterations.WithLabelValues(operation).Observe(float64(res.Iterations))
		}
	}()

	return a.loop.Run(ctx, a.memory.Messages(), request)
}

// fallbackPriceData prefers caller-supplied price data and otherwise uses the
// last successful market data observation of the run.
func fallbackPriceData(price *models.PriceResult, res *RunResult) string {
	if price != nil && (price.Snapshot != nil || price.Answer != "") {
		return price.PromptText()
	}
	if res != nil && res.LastPrice != nil {
		if b, err := json.Marshal(res.LastPrice); err == nil {
			return string(b)
		}
	}
	return price.PromptText()
}

// ResetMemory clears the conversation history.
func (a *StockAgent) ResetMemory() {
	a.memory.Clear()
	a.logger.Info("conversation memory cleared")
}

// History returns the retained conversation turns.
func (a *StockAgent) History() []models.ConversationTurn {
	return a.memory.History()
}

func (a *StockAgent) saveCache(key string, v any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Save(key, v); err != nil {
		a.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
