package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/cache"
	"github.com/dyike/TickerGo/internal/tools"
	"github.com/dyike/TickerGo/models"
	"github.com/dyike/TickerGo/pkg/dataflows"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	searchStep   = "Thought: I should look for recent news.\nAction: web_search\nAction Input: AAPL stock news"
	priceStep    = "Thought: I need the price.\nAction: get_stock_price\nAction Input: AAPL"
	finalBuyStep = "Thought: I now know the final answer\nFinal Answer: AAPL rose 2.0% to $153.00 on strong demand. Recommendation: BUY"
)

// scriptedGenerator replays loop replies in order, repeating the last one,
// and answers fallback prompts separately.
type scriptedGenerator struct {
	steps    []string
	fallback string
	err      error
	panics   bool

	loopCalls     int
	fallbackCalls int
	loopInputs    [][]*schema.Message
	fallbackInput string
}

func isFallbackPrompt(msgs []*schema.Message) bool {
	return len(msgs) == 1 && msgs[0].Role == schema.User && strings.Contains(msgs[0].Content, "Price data for")
}

func (g *scriptedGenerator) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	if g.panics {
		panic("model client crashed")
	}
	if g.err != nil {
		return "", g.err
	}
	if isFallbackPrompt(msgs) {
		g.fallbackCalls++
		g.fallbackInput = msgs[0].Content
		return g.fallback, nil
	}

	g.loopInputs = append(g.loopInputs, msgs)
	idx := g.loopCalls
	g.loopCalls++
	if idx >= len(g.steps) {
		idx = len(g.steps) - 1
	}
	return g.steps[idx], nil
}

func (g *scriptedGenerator) totalCalls() int { return g.loopCalls + g.fallbackCalls }

type fakeMarket struct {
	quote *dataflows.Quote
	err   error
	calls int
}

func (f *fakeMarket) Name() string { return "fake-market" }

func (f *fakeMarket) LatestQuote(ctx context.Context, symbol string) (*dataflows.Quote, error) {
	f.calls++
	return f.quote, f.err
}

type fakeSearch struct {
	hits  []dataflows.SearchHit
	calls int
}

func (f *fakeSearch) Name() string { return "fake-search" }

func (f *fakeSearch) Search(ctx context.Context, query string, max int) ([]dataflows.SearchHit, error) {
	f.calls++
	return f.hits, nil
}

func aaplMarket() *fakeMarket {
	return &fakeMarket{quote: &dataflows.Quote{
		Symbol: "AAPL",
		Open:   decimal.NewFromInt(150),
		High:   decimal.NewFromInt(154),
		Low:    decimal.NewFromInt(149),
		Close:  decimal.NewFromInt(153),
		Volume: 1_000_000,
		Time:   time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	}}
}

func newsSearch() *fakeSearch {
	return &fakeSearch{hits: []dataflows.SearchHit{
		{Title: "Apple demand strong", Snippet: "iPhone sales beat estimates", URL: "https://news.example.com/aapl"},
	}}
}

func newTestAgent(t *testing.T, gen *scriptedGenerator, market *fakeMarket, search *fakeSearch, opts ...Option) *StockAgent {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	agent, err := New(context.Background(), gen,
		tools.NewMarketDataTool(market, time.Second, quietLogger),
		tools.NewWebSearchTool(search, 5, time.Second, quietLogger),
		opts...)
	require.NoError(t, err)
	return agent
}

func TestAnalyzeFinishesInOneIterationWithoutFallback(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{finalBuyStep}}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch())

	analysis, err := agent.Analyze(context.Background(), "aapl", nil)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", analysis.Ticker)
	assert.Equal(t, models.TerminationFinished, analysis.Termination)
	assert.Equal(t, 1, analysis.Iterations)
	assert.False(t, analysis.FallbackUsed)
	assert.Equal(t, models.RecommendationBuy, analysis.Recommendation)
	assert.Equal(t, 1, gen.totalCalls())
	assert.Equal(t, 0, gen.fallbackCalls)
	assert.Len(t, agent.History(), 2)
}

func TestAnalyzeIterationLimitRunsFallbackOnce(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{searchStep},
		fallback: "AAPL trades sideways.\nRecommendation: HOLD\nWait for a clearer trend.",
	}
	search := newsSearch()
	agent := newTestAgent(t, gen, aaplMarket(), search, WithMaxIterations(5))

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationIterationLimitReached, analysis.Termination)
	assert.Equal(t, 5, analysis.Iterations)
	assert.Len(t, analysis.Steps, 5)
	assert.True(t, analysis.FallbackUsed)
	assert.Equal(t, models.RecommendationHold, analysis.Recommendation)
	assert.Equal(t, 5, gen.loopCalls)
	assert.Equal(t, 1, gen.fallbackCalls)
	assert.Equal(t, 6, gen.totalCalls())
	// identical calls are not deduplicated
	assert.Equal(t, 5, search.calls)
}

func TestAnalyzeParseExhaustedAppendsDefaultRecommendation(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{"I am not following the format."},
		fallback: "Not enough information to judge.",
	}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch(), WithMaxIterations(3))

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationParseExhausted, analysis.Termination)
	assert.True(t, analysis.FallbackUsed)
	assert.True(t, strings.HasSuffix(analysis.Text, "Recommendation: HOLD"))
	assert.Equal(t, models.RecommendationHold, analysis.Recommendation)
	for _, step := range analysis.Steps {
		assert.True(t, step.ParseFailed)
	}
}

func TestAnalyzeFallbackWithConflictingTokensSettlesOnOne(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{searchStep},
		fallback: "Some would BUY on the dip, but I'd rather HOLD for now.",
	}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch(), WithMaxIterations(5))

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	assert.True(t, analysis.FallbackUsed)
	assert.Equal(t, models.RecommendationHold, analysis.Recommendation)
	rec, distinct := models.ExtractRecommendation(analysis.Text)
	assert.Equal(t, 1, distinct)
	assert.Equal(t, models.RecommendationHold, rec)
	assert.Equal(t, 1, gen.fallbackCalls)
}

func TestAnalyzeParseFailureConsumesIterationAndFeedsBack(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{
		"Let me think about this",
		"Thought: I now know the final answer\nFinal Answer: Recommendation: SELL, margins are shrinking.",
	}}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch())

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationFinished, analysis.Termination)
	assert.Equal(t, 2, analysis.Iterations)
	require.Len(t, analysis.Steps, 2)
	assert.True(t, analysis.Steps[0].ParseFailed)
	assert.Contains(t, analysis.Steps[0].Observation, "Missing 'Action:'")
	assert.Equal(t, models.RecommendationSell, analysis.Recommendation)

	second := gen.loopInputs[1]
	last := second[len(second)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Observation: Invalid Format"))
}

func TestAnalyzeUnknownToolIsFedBack(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{
		"Thought: compute\nAction: calculator\nAction Input: 2+2",
		finalBuyStep,
	}}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch())

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Contains(t, analysis.Steps[0].Observation, "calculator is not a valid tool")
	assert.Equal(t, models.TerminationFinished, analysis.Termination)
}

func TestAAPLPriceThenAnalysisEndToEnd(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{searchStep, finalBuyStep}}
	market := aaplMarket()
	agent := newTestAgent(t, gen, market, newsSearch())
	ctx := context.Background()

	price, err := agent.GetStockPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, price.Snapshot)
	assert.False(t, price.Escalated)
	assert.True(t, price.Snapshot.CurrentPrice.Equal(decimal.NewFromFloat(153.0)))
	assert.True(t, price.Snapshot.ChangePercent.Equal(decimal.NewFromFloat(2.0)))
	assert.Equal(t, 0, gen.totalCalls())

	analysis, err := agent.Analyze(ctx, "AAPL", price)
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.Iterations)
	assert.False(t, analysis.FallbackUsed)
	_, distinct := models.ExtractRecommendation(analysis.Text)
	assert.Equal(t, 1, distinct)
	assert.Equal(t, models.RecommendationBuy, analysis.Recommendation)
	assert.Equal(t, "Apple demand strong", strings.SplitN(strings.TrimPrefix(analysis.Steps[0].Observation, "Title: "), "\n", 2)[0])

	first := gen.loopInputs[0]
	var question string
	for _, m := range first {
		if m.Role == schema.User && strings.HasPrefix(m.Content, "Question: ") {
			question = m.Content
		}
	}
	assert.Contains(t, question, "Analyze AAPL stock based on this price data:")
	assert.Contains(t, question, `"current_price":153.00`)
	assert.Equal(t, 1, market.calls)
}

func TestAnalyzeMissingRecommendationTriggersFallbackWithCallerPrice(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{"Thought: done\nFinal Answer: AAPL could go either way."},
		fallback: "AAPL is up 2%.\nRecommendation: BUY\nMomentum is positive.",
	}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch())

	price, err := agent.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)

	analysis, err := agent.Analyze(context.Background(), "AAPL", price)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationFinished, analysis.Termination)
	assert.True(t, analysis.FallbackUsed)
	assert.Equal(t, models.RecommendationBuy, analysis.Recommendation)
	assert.Contains(t, gen.fallbackInput, `"current_price":153.00`)
	assert.Contains(t, gen.fallbackInput, "Price data for AAPL")
}

func TestFallbackUsesLastMarketObservation(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{priceStep},
		fallback: "Recommendation: HOLD. Price is stable.",
	}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch(), WithMaxIterations(2))

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)

	assert.True(t, analysis.FallbackUsed)
	assert.Contains(t, gen.fallbackInput, `"current_price":153.00`)
}

func TestGetStockPriceEscalatesProviderFault(t *testing.T) {
	t.Run("loop finishes", func(t *testing.T) {
		gen := &scriptedGenerator{steps: []string{"Thought: the provider has no data\nFinal Answer: No price data is available for ZZZZ."}}
		agent := newTestAgent(t, gen, &fakeMarket{err: dataflows.ErrNoData}, newsSearch())

		res, err := agent.GetStockPrice(context.Background(), "ZZZZ")
		require.NoError(t, err)
		assert.True(t, res.Escalated)
		assert.Nil(t, res.Error)
		assert.Equal(t, "No price data is available for ZZZZ.", res.Answer)
		assert.Equal(t, 1, gen.loopCalls)
		assert.Contains(t, gen.loopInputs[0][1].Content, "What is the current stock price of ZZZZ? Just return the price data.")
		assert.Len(t, agent.History(), 2)
	})

	t.Run("loop gives up", func(t *testing.T) {
		gen := &scriptedGenerator{steps: []string{"Thought: retry\nAction: get_stock_price\nAction Input: ZZZZ"}}
		agent := newTestAgent(t, gen, &fakeMarket{err: dataflows.ErrNoData}, newsSearch(), WithMaxIterations(2))

		res, err := agent.GetStockPrice(context.Background(), "ZZZZ")
		require.NoError(t, err)
		require.NotNil(t, res.Error)
		assert.Equal(t, "ZZZZ", res.Error.Ticker)
		assert.Contains(t, res.Error.Message, "no recent price data")
		assert.Empty(t, res.Answer)
		assert.Equal(t, 0, gen.fallbackCalls)
	})

	t.Run("generator fails", func(t *testing.T) {
		gen := &scriptedGenerator{err: errors.New("upstream 503")}
		agent := newTestAgent(t, gen, &fakeMarket{err: dataflows.ErrNoData}, newsSearch())

		res, err := agent.GetStockPrice(context.Background(), "ZZZZ")
		require.NoError(t, err)
		require.NotNil(t, res.Error)
	})
}

func TestInvalidTickerRejectedBeforeWork(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{finalBuyStep}}
	market := aaplMarket()
	agent := newTestAgent(t, gen, market, newsSearch())

	_, err := agent.GetStockPrice(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidTicker)

	_, err = agent.AnalyzeStock(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrInvalidTicker)

	assert.Equal(t, 0, market.calls)
	assert.Equal(t, 0, gen.totalCalls())
}

func TestAnalyzeBoundaryConvertsFailures(t *testing.T) {
	t.Run("generator error", func(t *testing.T) {
		agent := newTestAgent(t, &scriptedGenerator{err: errors.New("upstream 503")}, aaplMarket(), newsSearch())

		text, err := agent.AnalyzeStock(context.Background(), "AAPL", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(text, "Analysis failed for AAPL: "))
		assert.Contains(t, text, "upstream 503")
		assert.Empty(t, agent.History())
	})

	t.Run("generator panic", func(t *testing.T) {
		agent := newTestAgent(t, &scriptedGenerator{panics: true}, aaplMarket(), newsSearch())

		text, err := agent.AnalyzeStock(context.Background(), "AAPL", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(text, "Analysis failed for AAPL: "))
	})
}

func TestResetMemory(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{finalBuyStep}}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch())
	ctx := context.Background()

	_, err := agent.Analyze(ctx, "AAPL", nil)
	require.NoError(t, err)
	_, err = agent.Analyze(ctx, "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, agent.History(), 4)
	// second run replays the first exchange: system, 2 history turns, question
	assert.Len(t, gen.loopInputs[1], 4)

	agent.ResetMemory()
	assert.Empty(t, agent.History())

	_, err = agent.Analyze(ctx, "AAPL", nil)
	require.NoError(t, err)
	assert.Len(t, gen.loopInputs[2], 2)
}

func TestMemoryMaxTurns(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{finalBuyStep}}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch(), WithMemoryMaxTurns(2))

	for i := 0; i < 3; i++ {
		_, err := agent.Analyze(context.Background(), "AAPL", nil)
		require.NoError(t, err)
	}
	assert.Len(t, agent.History(), 2)
}

func TestEmptySearchStillCompletes(t *testing.T) {
	gen := &scriptedGenerator{steps: []string{searchStep, finalBuyStep}}
	agent := newTestAgent(t, gen, aaplMarket(), &fakeSearch{})

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Equal(t, tools.NoResultsText, analysis.Steps[0].Observation)
	assert.Equal(t, models.TerminationFinished, analysis.Termination)
	assert.Equal(t, models.RecommendationBuy, analysis.Recommendation)
}

func TestMaxIterationsClamped(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultMaxIterations},
		{-3, DefaultMaxIterations},
		{2, 5},
		{5, 5},
		{9, 9},
		{25, 10},
	}
	for _, tt := range tests {
		agent := newTestAgent(t, &scriptedGenerator{steps: []string{finalBuyStep}}, aaplMarket(), newsSearch(), WithMaxIterations(tt.in))
		assert.Equal(t, tt.want, agent.loop.MaxIterations(), "in=%d", tt.in)
	}
}

func TestShortIterationLimitStillRunsFiveSteps(t *testing.T) {
	gen := &scriptedGenerator{
		steps:    []string{searchStep},
		fallback: "Recommendation: HOLD",
	}
	agent := newTestAgent(t, gen, aaplMarket(), newsSearch(), WithMaxIterations(2))

	analysis, err := agent.Analyze(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, analysis.Iterations)
	assert.Equal(t, 5, gen.loopCalls)
}

func TestNeedsFallback(t *testing.T) {
	tests := []struct {
		name     string
		res      *RunResult
		analysis bool
		want     FallbackTrigger
	}{
		{"finished with token", &RunResult{Reason: models.TerminationFinished, Answer: "BUY"}, true, TriggerNone},
		{"finished price answer", &RunResult{Reason: models.TerminationFinished, Answer: "153.00"}, false, TriggerNone},
		{"finished without token", &RunResult{Reason: models.TerminationFinished, Answer: "unclear"}, true, TriggerMissingRecommendation},
		{"finished with two tokens", &RunResult{Reason: models.TerminationFinished, Answer: "BUY or SELL"}, true, TriggerMissingRecommendation},
		{"iteration limit", &RunResult{Reason: models.TerminationIterationLimitReached}, false, TriggerIterationLimit},
		{"parse exhausted", &RunResult{Reason: models.TerminationParseExhausted}, true, TriggerParseExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsFallback(tt.res, tt.analysis))
		})
	}
}

func TestNewFromConfigMissingAPIKeyFailsBeforeTools(t *testing.T) {
	market := aaplMarket()
	search := newsSearch()
	cfg := &config.Config{LLMProvider: config.ProviderGroq, LLMModel: config.DefaultModel, MaxIterations: 8}

	_, err := NewFromConfig(context.Background(), cfg,
		WithLogger(quietLogger), WithMarketProvider(market), WithSearchProvider(search))
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.Equal(t, 0, market.calls)
	assert.Equal(t, 0, search.calls)
}

func TestNewFromConfigWiresCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := &config.Config{
		LLMProvider:      config.ProviderGroq,
		LLMModel:         config.DefaultModel,
		GroqAPIKey:       "test-key",
		MaxIterations:    8,
		SearchMaxResults: 5,
		ToolTimeout:      time.Second,
		CacheEnabled:     true,
		DataCacheDir:     dir,
	}
	gen := &scriptedGenerator{steps: []string{finalBuyStep}}

	agent, err := NewFromConfig(context.Background(), cfg,
		WithLogger(quietLogger), WithGenerator(gen),
		WithMarketProvider(aaplMarket()), WithSearchProvider(newsSearch()))
	require.NoError(t, err)

	price, err := agent.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = agent.Analyze(context.Background(), "AAPL", price)
	require.NoError(t, err)

	store := cache.NewStore(dir)
	var snap models.PriceSnapshot
	require.NoError(t, store.Load("price_AAPL", &snap))
	assert.Equal(t, "153.00", snap.CurrentPrice.StringFixed(2))

	var analysis models.Analysis
	require.NoError(t, store.Load("analysis_AAPL", &analysis))
	assert.Equal(t, models.RecommendationBuy, analysis.Recommendation)
}
