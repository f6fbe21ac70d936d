package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/llm"
	"github.com/dyike/TickerGo/internal/tools"
	"github.com/dyike/TickerGo/internal/utils"
	"github.com/dyike/TickerGo/models"
)

const DefaultMaxIterations = 8

// RunResult is the outcome of one reasoning loop run.
type RunResult struct {
	Answer     string
	Reason     models.TerminationReason
	Steps      []models.ReasoningStep
	Iterations int
	// LastPrice is the most recent successful market data observation.
	LastPrice *models.PriceSnapshot
}

// Loop drives Thought/Action/Observation cycles until a final answer or the
// iteration limit.
type Loop struct {
	generator     llm.Generator
	registry      *tools.Registry
	template      prompt.ChatTemplate
	maxIterations int
	logger        *slog.Logger
}

func NewLoop(generator llm.Generator, registry *tools.Registry, maxIterations int, logger *slog.Logger) (*Loop, error) {
	systemTpl, err := utils.LoadPrompt("react_system")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemTpl),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("Question: {input}"),
		schema.MessagesPlaceholder("agent_scratchpad", true),
	)

	return &Loop{
		generator:     generator,
		registry:      registry,
		template:      template,
		maxIterations: clampIterations(maxIterations),
		logger:        logger,
	}, nil
}

// clampIterations maps n into [config.MinIterations, config.MaxIterationsCap];
// zero or negative selects the default.
func clampIterations(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxIterations
	case n < config.MinIterations:
		return config.MinIterations
	case n > config.MaxIterationsCap:
		return config.MaxIterationsCap
	default:
		return n
	}
}

func (l *Loop) MaxIterations() int { return l.maxIterations }

// Run executes the loop for input with history replayed before it. A
// generator error aborts the run and is returned with the partial result.
func (l *Loop) Run(ctx context.Context, history []*schema.Message, input string) (*RunResult, error) {
	toolDesc, err := l.registry.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe tools: %w", err)
	}

	result := &RunResult{Steps: make([]models.ReasoningStep, 0, l.maxIterations)}
	scratchpad := make([]*schema.Message, 0, l.maxIterations*2)
	parseFailures := 0

	for i := 0; i < l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		messages, err := l.template.Format(ctx, map[string]any{
			"tools":            toolDesc,
			"tool_names":       l.registry.Names(),
			"chat_history":     history,
			"input":            input,
			"agent_scratchpad": scratchpad,
		})
		if err != nil {
			return result, fmt.Errorf("format prompt: %w", err)
		}

		raw, err := l.generator.Generate(ctx, messages)
		result.Iterations = i + 1
		if err != nil {
			return result, fmt.Errorf("generate step %d: %w", i+1, err)
		}

		decision, perr := ParseOutput(raw)
		step := models.ReasoningStep{Thought: decision.Thought, Tool: decision.ToolName, ToolInput: decision.ToolInput}

		switch {
		case perr != nil:
			parseFailures++
			step.ParseFailed = true
			step.Observation = observationFor(perr)
			l.logger.Debug("unparseable step", "iteration", i+1, "error", perr)
		case decision.Final:
			result.Steps = append(result.Steps, step)
			result.Answer = decision.Answer
			result.Reason = models.TerminationFinished
			l.logger.Debug("loop finished", "iterations", result.Iterations)
			return result, nil
		default:
			obs, err := l.registry.Invoke(ctx, decision.Tool, decision.ToolInput)
			if err != nil {
				obs = "Error: " + err.Error()
			}
			if decision.Tool == tools.KindMarketData {
				if snap := snapshotFromObservation(obs); snap != nil {
					result.LastPrice = snap
				}
			}
			step.Observation = obs
			l.logger.Debug("tool step", "iteration", i+1, "tool", decision.ToolName, "input", decision.ToolInput)
		}

		result.Steps = append(result.Steps, step)
		scratchpad = append(scratchpad,
			schema.AssistantMessage(strings.TrimSpace(raw), nil),
			schema.UserMessage("Observation: "+step.Observation),
		)
	}

	if parseFailures == len(result.Steps) {
		result.Reason = models.TerminationParseExhausted
	} else {
		result.Reason = models.TerminationIterationLimitReached
	}
	l.logger.Info("loop stopped without final answer", "reason", result.Reason, "iterations", result.Iterations)
	return result, nil
}

func snapshotFromObservation(obs string) *models.PriceSnapshot {
	if !strings.Contains(obs, `"current_price"`) {
		return nil
	}
	var snap models.PriceSnapshot
	if err := json.Unmarshal([]byte(obs), &snap); err != nil || snap.Ticker == "" {
		return nil
	}
	return &snap
}
