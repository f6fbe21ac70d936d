package agents

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
)

// LoggerCallback traces compose node execution through slog.
type LoggerCallback struct {
	Logger *slog.Logger
}

var _ callbacks.Handler = (*LoggerCallback)(nil)

func NewLoggerCallback(logger *slog.Logger) *LoggerCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerCallback{Logger: logger}
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	cb.Logger.Debug("node start", runInfoAttrs(info)...)
	return ctx
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	attrs := runInfoAttrs(info)
	if s, ok := output.(string); ok {
		attrs = append(attrs, "output_len", len(s))
	}
	cb.Logger.Debug("node end", attrs...)
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	cb.Logger.Warn("node error", append(runInfoAttrs(info), "error", err)...)
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func runInfoAttrs(info *callbacks.RunInfo) []any {
	if info == nil {
		return []any{}
	}
	return []any{"node", info.Name, "type", info.Type, "component", string(info.Component)}
}
