package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
)

// Kind is the closed set of tools the reasoning loop may call.
type Kind int

const (
	KindMarketData Kind = iota + 1
	KindWebSearch
)

func (k Kind) String() string {
	switch k {
	case KindMarketData:
		return StockPriceToolName
	case KindWebSearch:
		return WebSearchToolName
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// UnknownToolError is returned when the model names a tool outside the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s is not a valid tool, try one of [%s, %s]", e.Name, StockPriceToolName, WebSearchToolName)
}

// ParseKind maps a tool name, as written by the model, to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.TrimSpace(name) {
	case StockPriceToolName:
		return KindMarketData, nil
	case WebSearchToolName:
		return KindWebSearch, nil
	default:
		return 0, &UnknownToolError{Name: strings.TrimSpace(name)}
	}
}

// Registry holds the two tools of the reasoning loop.
type Registry struct {
	Market *MarketDataTool
	Search *WebSearchTool
}

func NewRegistry(market *MarketDataTool, search *WebSearchTool) *Registry {
	return &Registry{Market: market, Search: search}
}

func (r *Registry) tool(kind Kind) tool.InvokableTool {
	switch kind {
	case KindMarketData:
		if r.Market != nil {
			return r.Market
		}
	case KindWebSearch:
		if r.Search != nil {
			return r.Search
		}
	}
	return nil
}

// Invoke runs the tool of the given kind and returns its observation text.
func (r *Registry) Invoke(ctx context.Context, kind Kind, input string) (string, error) {
	t := r.tool(kind)
	if t == nil {
		return "", &UnknownToolError{Name: kind.String()}
	}
	return t.InvokableRun(ctx, input)
}

// Describe lists each tool as "name: description" for the system prompt.
func (r *Registry) Describe(ctx context.Context) (string, error) {
	lines := make([]string, 0, 2)
	for _, kind := range r.Kinds() {
		t := r.tool(kind)
		if t == nil {
			continue
		}
		info, err := t.Info(ctx)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s: %s", info.Name, info.Desc))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Registry) Kinds() []Kind {
	return []Kind{KindMarketData, KindWebSearch}
}

func (r *Registry) Names() string {
	kinds := r.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

// argumentValue extracts a tool argument from either a JSON object or a bare
// string as models tend to write it in an Action Input line.
func argumentValue(raw string, keys ...string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			for _, k := range keys {
				if v, ok := obj[k].(string); ok {
					return strings.TrimSpace(v)
				}
			}
			return ""
		}
	}
	return strings.Trim(raw, "\"'` ")
}
