package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/dyike/TickerGo/config"
	"github.com/dyike/TickerGo/internal/agents"
	"github.com/dyike/TickerGo/internal/cache"
	"github.com/dyike/TickerGo/internal/debug"
	"github.com/dyike/TickerGo/internal/server"
	"github.com/dyike/TickerGo/models"
	"github.com/spf13/cobra"
)

var Version = "0.1.0"

type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root command from the environment configuration.
func NewRootCmd() *cobra.Command {
	return newRootCmd(config.DefaultConfig())
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, logger: slog.Default()}

	rootCmd := &cobra.Command{
		Use:   "tickergo",
		Short: "TickerGo - AI stock price lookup and analysis",
		Long: `TickerGo fetches current stock prices and produces BUY/SELL/HOLD analyses
with a tool-using reasoning agent backed by a hosted LLM.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.LogFormat = v
			}
			logger, err := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.logger = logger
			slog.SetDefault(logger)

			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}

	rootCmd.AddCommand(a.newServeCmd())
	rootCmd.AddCommand(a.newPriceCmd())
	rootCmd.AddCommand(a.newAnalyzeCmd())
	rootCmd.AddCommand(a.newChatCmd())
	rootCmd.AddCommand(a.newCacheCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides LOG_FORMAT)")

	return rootCmd
}

func (a *app) newAgent(ctx context.Context) (*agents.StockAgent, error) {
	return agents.NewFromConfig(ctx, a.cfg, agents.WithLogger(a.logger))
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.ServerAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := debug.NewEinoDebugger(a.cfg, a.logger).Initialize(ctx); err != nil {
				a.logger.Warn("eino debugger unavailable", "error", err)
			}

			agent, err := a.newAgent(ctx)
			if err != nil {
				return err
			}
			srv, err := server.New(a.cfg.ServerAddr, agent, a.logger)
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides SERVER_ADDR)")
	return cmd
}

func (a *app) newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price [TICKER]",
		Short: "Show the current price of a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			agent, err := a.newAgent(ctx)
			if err != nil {
				return err
			}
			res, err := agent.GetStockPrice(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderPrice(res))
			return nil
		},
	}
}

func (a *app) newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [TICKER]",
		Short: "Analyze a stock and give a BUY, SELL or HOLD recommendation",
		Long: `Fetch the current price of a stock, research recent news and market sentiment,
and produce a recommendation.
Example: tickergo analyze AAPL`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			skipPrice, _ := cmd.Flags().GetBool("no-price")

			agent, err := a.newAgent(ctx)
			if err != nil {
				return err
			}
			return analyzeTicker(ctx, cmd.OutOrStdout(), agent, args[0], !skipPrice)
		},
	}
	cmd.Flags().Bool("no-price", false, "Skip the direct price lookup and let the agent research on its own")
	return cmd
}

func analyzeTicker(ctx context.Context, out io.Writer, agent *agents.StockAgent, ticker string, withPrice bool) error {
	var price *models.PriceResult
	if withPrice {
		res, err := agent.GetStockPrice(ctx, ticker)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, RenderPrice(res))
		price = res
	}

	fmt.Fprintln(out, mutedStyle.Render("🔄 Researching "+ticker+"..."))
	analysis, err := agent.Analyze(ctx, ticker, price)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderAnalysis(analysis))
	return nil
}

func (a *app) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session with conversation memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}
}

func (a *app) runChat(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	agent, err := a.newAgent(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, titleStyle.Render("🚀 TickerGo - AI stock analysis"))
	for {
		action, err := PromptForAction()
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return err
		}

		switch action {
		case actionExit:
			fmt.Fprintln(out, "👋 Goodbye!")
			return nil
		case actionReset:
			agent.ResetMemory()
			fmt.Fprintln(out, mutedStyle.Render("Conversation memory cleared."))
			continue
		}

		ticker, err := PromptForTicker()
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return err
		}

		if action == actionPrice {
			res, err := agent.GetStockPrice(ctx, ticker)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
				continue
			}
			fmt.Fprintln(out, RenderPrice(res))
			continue
		}

		if err := analyzeTicker(ctx, out, agent, ticker, true); err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
		}
	}
}

func (a *app) newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect cached price snapshots and analyses",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "get [KEY]",
		Short: "Print a cached entry, e.g. price_AAPL or analysis_AAPL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := cache.NewStore(a.cfg.DataCacheDir).LoadRaw(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := cache.NewStore(a.cfg.DataCacheDir).Keys()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	})

	return cacheCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TickerGo v%s\n", Version)
		},
	}
}

func (a *app) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cmd.OutOrStdout(), a.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate provider, credentials and limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), a.cfg)
		},
	})

	return configCmd
}

func configured(ok bool) string {
	if ok {
		return "✅ Configured"
	}
	return "❌ Not configured"
}

func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "📋 Current TickerGo Configuration:")
	fmt.Fprintln(w, "═══════════════════════════════════════")
	fmt.Fprintf(w, "Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Cache Directory:      %s\n", cfg.DataCacheDir)
	fmt.Fprintf(w, "Cache Enabled:        %t\n", cfg.CacheEnabled)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "LLM Model:            %s\n", cfg.LLMModel)
	fmt.Fprintf(w, "Backend URL:          %s\n", cfg.BackendURL)
	fmt.Fprintf(w, "Temperature:          %.2f\n", cfg.LLMTemperature)
	fmt.Fprintf(w, "Max Tokens:           %d\n", cfg.LLMMaxTokens)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Max Iterations:       %d\n", cfg.MaxIterations)
	fmt.Fprintf(w, "Memory Max Turns:     %d\n", cfg.MemoryMaxTurns)
	fmt.Fprintf(w, "Search Max Results:   %d\n", cfg.EffectiveSearchMax())
	fmt.Fprintf(w, "Tool Timeout:         %s\n", cfg.ToolTimeout)
	fmt.Fprintf(w, "Server Address:       %s\n", cfg.ServerAddr)
	fmt.Fprintf(w, "Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Fprintf(w, "Eino Debug Port:      %d\n", cfg.EinoDebugPort)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔌 API Configuration:")
	fmt.Fprintln(w, "─────────────────────")
	fmt.Fprintf(w, "%-21s %s\n", cfg.APIKeyEnv()+":", configured(cfg.APIKey() != ""))
	fmt.Fprintf(w, "%-21s %s\n", "Longport API:", configured(cfg.LongportConfigured()))
}

func validateConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "🔍 Validating TickerGo Configuration...")

	fmt.Fprint(w, "⚙️  Checking provider and credentials... ")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, "❌")
		return err
	}
	fmt.Fprintln(w, "✅")

	if !cfg.LongportConfigured() {
		fmt.Fprintln(w, "  ⚠️  Longport credentials not configured, Yahoo Finance is the only market data source")
	}
	fmt.Fprintln(w, "✅ Configuration validation completed successfully!")
	return nil
}
