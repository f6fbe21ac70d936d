package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/internal/llm"
	"github.com/dyike/TickerGo/internal/utils"
	"github.com/dyike/TickerGo/models"
)

// FallbackTrigger names why the fallback generation ran.
type FallbackTrigger string

const (
	TriggerNone                  FallbackTrigger = ""
	TriggerIterationLimit        FallbackTrigger = FallbackTrigger(models.TerminationIterationLimitReached)
	TriggerParseExhausted        FallbackTrigger = FallbackTrigger(models.TerminationParseExhausted)
	TriggerMissingRecommendation FallbackTrigger = "missing_recommendation"
)

// NeedsFallback decides whether a loop result must be replaced. Analysis
// answers additionally need exactly one distinct recommendation token.
func NeedsFallback(res *RunResult, analysis bool) FallbackTrigger {
	if res == nil {
		return TriggerIterationLimit
	}
	switch res.Reason {
	case models.TerminationIterationLimitReached:
		return TriggerIterationLimit
	case models.TerminationParseExhausted:
		return TriggerParseExhausted
	}
	if analysis {
		if _, n := models.ExtractRecommendation(res.Answer); n != 1 {
			return TriggerMissingRecommendation
		}
	}
	return TriggerNone
}

// Fallback issues one direct generation from the ticker and price data.
type Fallback struct {
	runnable compose.Runnable[map[string]any, string]
	logger   *slog.Logger
}

func NewFallback(ctx context.Context, generator llm.Generator, logger *slog.Logger) (*Fallback, error) {
	tpl, err := utils.LoadPrompt("fallback")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	chain := compose.NewChain[map[string]any, string]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, schema.UserMessage(tpl)))
	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, msgs []*schema.Message) (string, error) {
		return generator.Generate(ctx, msgs)
	}))

	runnable, err := chain.Compile(ctx, compose.WithGraphName("fallback"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile fallback chain: %w", err)
	}

	return &Fallback{runnable: runnable, logger: logger}, nil
}

// Generate returns a summary that carries exactly one recommendation token,
// defaulting to HOLD.
func (f *Fallback) Generate(ctx context.Context, ticker, priceData string) (string, error) {
	if strings.TrimSpace(priceData) == "" {
		priceData = "not available"
	}

	out, err := f.runnable.Invoke(ctx, map[string]any{
		"ticker":     ticker,
		"price_data": priceData,
	}, compose.WithCallbacks(NewLoggerCallback(f.logger)))
	if err != nil {
		return "", fmt.Errorf("fallback generation: %w", err)
	}

	out, rec := models.SingleRecommendation(out, models.RecommendationHold)
	f.logger.Debug("fallback generated", "ticker", ticker, "recommendation", rec)
	return out, nil
}
