// Package cli provides the command-line interface for the signal council.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-council/internal/config"
	"signal-council/internal/logging"
	"signal-council/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	store store.DataStore
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// symbol resolves the symbol flag, falling back to the configured default.
func (a *App) symbol(cmd *cobra.Command) string {
	if s, _ := cmd.Flags().GetString("symbol"); s != "" {
		return s
	}
	return a.Config.Symbol
}

// NewRootCmd creates the root command for the CLI. A nil cfg is loaded from
// the --config directory before any command runs, and the logger is then
// built from it.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "council",
		Short: "Signal Council - fused technical, sentiment and model signals",
		Long: `Signal Council enriches daily price bars with technical indicators,
scores news and social sentiment, forecasts the next return with a random
forest and lets three analyst agents vote on a BUY, SELL or HOLD verdict.

Use 'council analyze --bars prices.csv' to run the full pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(loaded.LogConfig())
			}

			if !app.Config.UI.ColorEnabled {
				color.NoColor = true
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-council)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)

	return rootCmd
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
			output.Printf("Signal Council v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
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
			dir := app.ConfigDir
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
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	ind := cfg.Indicators
	output.Bold("Indicators")
	output.Printf("  SMA windows:     %d / %d\n", ind.ShortWindow, ind.LongWindow)
	output.Printf("  RSI period:      %d\n", ind.RSIPeriod)
	output.Printf("  MACD:            %d / %d / %d\n", ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
	output.Printf("  Bollinger:       %.1f std (sample: %v)\n", ind.BollingerMul, ind.SampleStdDev)
	output.Printf("  ATR period:      %d\n", ind.ATRPeriod)
	output.Println()

	pred := cfg.Predictor
	output.Bold("Predictor")
	output.Printf("  Trees:           %d (max depth %d)\n", pred.NumTrees, pred.MaxDepth)
	output.Printf("  Test fraction:   %.2f\n", pred.TestFraction)
	output.Printf("  Impact factor:   %.4f\n", pred.ImpactFactor)
	output.Printf("  Seed:            %d\n", pred.Seed)
	output.Println()

	an := cfg.Analysis
	output.Bold("Cycle Analysis")
	output.Printf("  Min observations: %d\n", an.MinObservations)
	output.Printf("  Seasonal period:  %d\n", an.SeasonalPeriod)
	output.Printf("  Cycle band:       %.0f - %.0f bars\n", an.CycleMin, an.CycleMax)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Log level:       %s\n", cfg.Log.Level)
}
