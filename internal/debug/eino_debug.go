package debug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/dyike/TickerGo/config"
)

const defaultDebugPort = 52538

// EinoDebugger starts the eino visual debug server when enabled, so the
// fallback chain can be inspected while the agent is serving.
type EinoDebugger struct {
	config *config.Config
	logger *slog.Logger
}

func NewEinoDebugger(cfg *config.Config, logger *slog.Logger) *EinoDebugger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EinoDebugger{config: cfg, logger: logger}
}

func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}

	d.logger.Debug("initializing eino debug plugin", "port", d.config.EinoDebugPort)
	if err := devops.Init(ctx, devops.WithDevServerPort(d.serverPort())); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server started", "url", d.GetDebugURL())
	return nil
}

// serverPort is the configured dev server port, or the plugin default when unset.
func (d *EinoDebugger) serverPort() string {
	if d.config.EinoDebugPort <= 0 {
		return strconv.Itoa(defaultDebugPort)
	}
	return strconv.Itoa(d.config.EinoDebugPort)
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config != nil && d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.IsEnabled() {
		return ""
	}
	return "http://localhost:" + d.serverPort()
}
