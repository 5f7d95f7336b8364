// Package config provides configuration management for the signal council.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"signal-council/internal/analysis/cycles"
	"signal-council/internal/analysis/indicators"
	apperrors "signal-council/internal/errors"
	"signal-council/internal/logging"
	"signal-council/internal/predictor"
)

// Config holds all application configuration.
type Config struct {
	Symbol     string           `mapstructure:"symbol"`
	Indicators IndicatorConfig  `mapstructure:"indicators"`
	Predictor  PredictorConfig  `mapstructure:"predictor"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	UI         UIConfig         `mapstructure:"ui"`
}

// IndicatorConfig holds indicator window configuration.
type IndicatorConfig struct {
	ShortWindow  int     `mapstructure:"short_window" validate:"gte=2"`
	LongWindow   int     `mapstructure:"long_window" validate:"gtefield=ShortWindow"`
	RSIPeriod    int     `mapstructure:"rsi_period" validate:"gte=2"`
	MACDFast     int     `mapstructure:"macd_fast" validate:"gte=1"`
	MACDSlow     int     `mapstructure:"macd_slow" validate:"gtfield=MACDFast"`
	MACDSignal   int     `mapstructure:"macd_signal" validate:"gte=1"`
	BollingerMul float64 `mapstructure:"bollinger_mul" validate:"gt=0"`
	ATRPeriod    int     `mapstructure:"atr_period" validate:"gte=1"`
	SampleStdDev bool    `mapstructure:"sample_std_dev"`
	Workers      int     `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// PredictorConfig holds random forest and sentiment fusion configuration.
type PredictorConfig struct {
	NumTrees        int     `mapstructure:"num_trees" validate:"gte=1,lte=5000"`
	MaxDepth        int     `mapstructure:"max_depth" validate:"gte=1,lte=64"`
	MinSamplesSplit int     `mapstructure:"min_samples_split" validate:"gte=2"`
	TestFraction    float64 `mapstructure:"test_fraction" validate:"gt=0,lt=1"`
	ImpactFactor    float64 `mapstructure:"impact_factor" validate:"gte=0,lte=0.1"`
	Seed            int64   `mapstructure:"seed"`
}

// AnalysisConfig holds cycle analysis configuration.
type AnalysisConfig struct {
	MinObservations int     `mapstructure:"min_observations" validate:"gte=0"`
	SeasonalPeriod  int     `mapstructure:"seasonal_period" validate:"gte=2"`
	CycleMin        float64 `mapstructure:"cycle_min" validate:"gt=0"`
	CycleMax        float64 `mapstructure:"cycle_max" validate:"gtfield=CycleMin"`
	TopCycles       int     `mapstructure:"top_cycles" validate:"gte=1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=File true"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format" validate:"required"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-council"
	}
	return filepath.Join(home, ".config", "signal-council")
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is written from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("symbol", "")

	v.SetDefault("indicators.short_window", 20)
	v.SetDefault("indicators.long_window", 50)
	v.SetDefault("indicators.rsi_period", 14)
	v.SetDefault("indicators.macd_fast", 12)
	v.SetDefault("indicators.macd_slow", 26)
	v.SetDefault("indicators.macd_signal", 9)
	v.SetDefault("indicators.bollinger_mul", 2.0)
	v.SetDefault("indicators.atr_period", 14)
	v.SetDefault("indicators.sample_std_dev", false)
	v.SetDefault("indicators.workers", 4)

	v.SetDefault("predictor.num_trees", 200)
	v.SetDefault("predictor.max_depth", 10)
	v.SetDefault("predictor.min_samples_split", 2)
	v.SetDefault("predictor.test_fraction", 0.2)
	v.SetDefault("predictor.impact_factor", 0.015)
	v.SetDefault("predictor.seed", 42)

	v.SetDefault("analysis.min_observations", 300)
	v.SetDefault("analysis.seasonal_period", 60)
	v.SetDefault("analysis.cycle_min", 20.0)
	v.SetDefault("analysis.cycle_max", 365.0)
	v.SetDefault("analysis.top_cycles", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "council.log"))
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("store.path", filepath.Join(configDir, "council.db"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COUNCIL_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("COUNCIL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("COUNCIL_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("COUNCIL_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Predictor.Seed = seed
		}
	}
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, errorMessage(fe))
		}
		return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, strings.Join(msgs, "; "))
	}

	// Every enrichment window must fit inside the long window.
	ind := c.Indicators
	for _, w := range []struct {
		name   string
		period int
	}{{"rsi_period", ind.RSIPeriod + 1}, {"atr_period", ind.ATRPeriod + 1}, {"macd_slow", ind.MACDSlow}} {
		if w.period > ind.LongWindow {
			return fmt.Errorf("%w: %s",
				apperrors.ErrConfigInvalid,
				apperrors.NewValidationError("indicators."+w.name, w.period, "must not exceed long_window").Error())
		}
	}

	return nil
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// IndicatorOptions converts the indicator section for the enricher.
func (c *Config) IndicatorOptions() indicators.Options {
	return indicators.Options{
		ShortWindow:  c.Indicators.ShortWindow,
		LongWindow:   c.Indicators.LongWindow,
		RSIPeriod:    c.Indicators.RSIPeriod,
		MACDFast:     c.Indicators.MACDFast,
		MACDSlow:     c.Indicators.MACDSlow,
		MACDSignal:   c.Indicators.MACDSignal,
		BollingerMul: c.Indicators.BollingerMul,
		ATRPeriod:    c.Indicators.ATRPeriod,
		SampleStdDev: c.Indicators.SampleStdDev,
		Workers:      c.Indicators.Workers,
	}
}

// PredictorConfig converts the predictor section.
func (c *Config) PredictorConfig() predictor.Config {
	return predictor.Config{
		NumTrees:        c.Predictor.NumTrees,
		MaxDepth:        c.Predictor.MaxDepth,
		MinSamplesSplit: c.Predictor.MinSamplesSplit,
		TestFraction:    c.Predictor.TestFraction,
		ImpactFactor:    c.Predictor.ImpactFactor,
		Seed:            c.Predictor.Seed,
	}
}

// AnalysisOptions converts the cycle analysis section.
func (c *Config) AnalysisOptions() cycles.Options {
	return cycles.Options{
		MinObservations: c.Analysis.MinObservations,
		SeasonalPeriod:  c.Analysis.SeasonalPeriod,
		CycleMin:        c.Analysis.CycleMin,
		CycleMax:        c.Analysis.CycleMax,
		TopCycles:       c.Analysis.TopCycles,
	}
}

// LogConfig converts the log section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
