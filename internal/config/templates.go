package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Signal Council Configuration

# Default symbol used when --symbol is not given
symbol = ""

[indicators]
# Moving average windows; long_window is also the warm-up length
short_window = 20
long_window = 50
rsi_period = 14
macd_fast = 12
macd_slow = 26
macd_signal = 9
# Bollinger band width in standard deviations
bollinger_mul = 2.0
atr_period = 14
# Use sample (n-1) instead of population standard deviation
sample_std_dev = false
# Indicators computed in parallel
workers = 4

[predictor]
num_trees = 200
max_depth = 10
min_samples_split = 2
# Share of rows held out for evaluation
test_fraction = 0.2
# Predicted return shift for a sentiment score of 1.0
impact_factor = 0.015
seed = 42

[analysis]
# Cycle analysis runs only above this many closes
min_observations = 300
seasonal_period = 60
# Cycle length band, in bars
cycle_min = 20.0
cycle_max = 365.0
top_cycles = 20

[log]
# Level: debug, info, warn, error
level = "info"
console = true
file = false
# file_path = "~/.config/signal-council/logs/council.log"
max_size = 50
max_backups = 5
max_age = 30

[store]
# path = "~/.config/signal-council/council.db"

[ui]
color_enabled = true
date_format = "2006-01-02"
`

// createTemplateConfig writes the commented template next to where Load
// looks for it. Loading then continues with defaults.
func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
