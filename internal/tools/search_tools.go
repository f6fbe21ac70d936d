package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/metrics"
	"github.com/dyike/TickerGo/models"
	"github.com/dyike/TickerGo/pkg/dataflows"
)

const WebSearchToolName = "web_search"

// NoResultsText is the observation rendered for an empty result list.
const NoResultsText = "No results found."

// WebSearchTool runs web searches for news and market sentiment.
type WebSearchTool struct {
	provider   dataflows.SearchProvider
	maxResults int
	timeout    time.Duration
	logger     *slog.Logger
}

var _ tool.InvokableTool = (*WebSearchTool)(nil)

func NewWebSearchTool(provider dataflows.SearchProvider, maxResults int, timeout time.Duration, logger *slog.Logger) *WebSearchTool {
	if maxResults <= 0 || maxResults > config.SearchResultCap {
		maxResults = config.SearchResultCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearchTool{provider: provider, maxResults: maxResults, timeout: timeout, logger: logger}
}

// Search returns up to the configured number of results in provider order.
// An empty, non-nil slice means the search succeeded with no hits.
func (w *WebSearchTool) Search(ctx context.Context, query string) (results []models.SearchResult, errRes *models.ErrorResult) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			errRes = &models.ErrorResult{Message: fmt.Sprintf("search provider failed: %v", r)}
		}
		metrics.ToolCalls.WithLabelValues(WebSearchToolName, statusOf(errRes)).Inc()
		if errRes != nil {
			w.logger.Warn("web search failed", "query", query, "error", errRes.Message)
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &models.ErrorResult{Message: "search query must not be empty"}
	}
	if w.provider == nil {
		return nil, &models.ErrorResult{Message: "no search provider configured"}
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	hits, err := w.provider.Search(ctx, query, w.maxResults)
	if err != nil {
		return nil, &models.ErrorResult{Message: fmt.Sprintf("error performing search: %v", err)}
	}

	results = make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if len(results) == w.maxResults {
			break
		}
		results = append(results, models.SearchResult{Title: h.Title, Body: h.Snippet, URL: h.URL})
	}
	return results, nil
}

// FormatResults renders search results as an observation for the model.
func FormatResults(results []models.SearchResult) string {
	if len(results) == 0 {
		return NoResultsText
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nBody: %s\nURL: %s\n", r.Title, r.Body, r.URL)
	}
	return sb.String()
}

func (w *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: WebSearchToolName,
		Desc: "Search the web for recent news, market sentiment and company information. Input should be a search query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search query, e.g. AAPL stock news",
				Required: true,
			},
		}),
	}, nil
}

func (w *WebSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	results, errRes := w.Search(ctx, argumentValue(argumentsInJSON, "query"))
	if errRes != nil {
		return "Error: " + errRes.Message, nil
	}
	return FormatResults(results), nil
}
