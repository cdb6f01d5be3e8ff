// Package cli provides the command-line interface for the account console.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dhan-trader/internal/account"
	"dhan-trader/internal/backend"
	"dhan-trader/internal/config"
	"dhan-trader/internal/instrument"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/notify"
	"dhan-trader/internal/stream"
	"dhan-trader/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. It is populated before any
// command runs.
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	API          *backend.Client
	Resolver     *instrument.Resolver
	Sync         *account.Synchronizer
	Ledger       *stream.Ledger
	Orchestrator *trading.Orchestrator
	Toasts       *notify.Toasts
}

// Execute builds the root command and runs it.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "dhan-trader",
		Short: "Dhan account console",
		Long: `dhan-trader keeps a Dhan account in view through the automation backend.

It polls funds, holdings, positions and orders, places and cancels orders,
squares off holdings and positions, and follows webhook trade alerts.

Use 'dhan-trader <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return app.init(cmd, configDir, debug)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/dhan-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	addCoreCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	addInstrumentCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addAlertCommands(rootCmd, app)

	return rootCmd
}

// init loads configuration and wires the components.
func (a *App) init(cmd *cobra.Command, configDir string, debug bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = cfg.Logging.FilePath
	logCfg.AlertTracePath = cfg.Logging.AlertTracePath
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	if debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.API, err = backend.NewClient(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout,
		RetryAttempts: cfg.Backend.RetryAttempts,
		RetryDelay:    cfg.Backend.RetryDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Resolver = instrument.NewResolver(a.API, instrument.Options{
		Debounce:  cfg.Search.Debounce,
		MinLength: cfg.Search.MinLength,
	}, a.Logger)
	a.Sync = account.NewSynchronizer(a.API, account.Options{Interval: cfg.Sync.Interval}, a.Logger)
	a.Ledger = stream.NewLedger(a.API, stream.LedgerConfig{
		PollInterval:  cfg.Alerts.PollInterval,
		EvictInterval: cfg.Alerts.EvictInterval,
		TTL:           cfg.Alerts.TTL,
		MaxLog:        cfg.Alerts.MaxLog,
	}, a.Logger, logging.NewAlertTraceLogger(logCfg))

	if !cfg.UI.ColorEnabled {
		if err := cmd.Flags().Set("no-color", "true"); err != nil {
			return err
		}
	}
	output := NewOutput(cmd)
	a.Toasts = notify.NewToasts(5, cfg.UI.NotifyTimeout)
	notifier := notify.NewMulti(notify.NewLogNotifier(a.Logger), a.Toasts)
	if !output.IsJSON() {
		notifier.Add(notify.NewWriter(cmd.ErrOrStderr(), output.colorEnabled))
	}

	var confirmer trading.Confirmer = trading.AlwaysConfirm
	if cfg.Trading.ConfirmCancel {
		confirmer = promptConfirmer(cmd)
	}
	a.Orchestrator = trading.NewOrchestrator(a.API, a.Resolver, a.Sync, confirmer, notifier, a.Logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmdLogger := a.Logger.With().Str("command", cmd.CommandPath()).Logger()
	cmd.SetContext(logging.WithLogger(ctx, cmdLogger))
	return nil
}

// promptConfirmer asks on the command's input unless --yes was given.
func promptConfirmer(cmd *cobra.Command) trading.Confirmer {
	return trading.ConfirmFunc(func(_ context.Context, prompt string) bool {
		if yes, err := cmd.Flags().GetBool("yes"); err == nil && yes {
			return true
		}
		return askYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt)
	})
}

func askYesNo(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("dhan-trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and check application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Backend")
	output.Printf("  Base URL:        %s\n", cfg.Backend.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.Backend.Timeout)
	output.Printf("  Retries:         %d (delay %s)\n", cfg.Backend.RetryAttempts, cfg.Backend.RetryDelay)
	output.Println()

	output.Bold("Polling")
	output.Printf("  Account refresh: %s\n", cfg.Sync.Interval)
	output.Printf("  Alert poll:      %s\n", cfg.Alerts.PollInterval)
	output.Printf("  Alert TTL:       %s\n", cfg.Alerts.TTL)
	output.Printf("  Alert log cap:   %d\n", cfg.Alerts.MaxLog)
	output.Println()

	output.Bold("Trading Defaults")
	output.Printf("  Product:         %s\n", cfg.Trading.DefaultProduct)
	output.Printf("  Order type:      %s\n", cfg.Trading.DefaultOrderType)
	output.Printf("  Validity:        %s\n", cfg.Trading.DefaultValidity)
	output.Printf("  Confirm cancel:  %v\n", cfg.Trading.ConfirmCancel)
	output.Println()

	output.Bold("Search")
	output.Printf("  Segment:         %s\n", cfg.Search.DefaultSegment)
	output.Printf("  Min length:      %d\n", cfg.Search.MinLength)
	output.Printf("  Debounce:        %s\n", cfg.Search.Debounce)
}
