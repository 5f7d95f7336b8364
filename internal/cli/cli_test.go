package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-council/internal/config"
)

func writeBarsCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 8*math.Sin(2*math.Pi*float64(i)/30) + float64(i%7)*0.1
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%d\n",
			base.AddDate(0, 0, i).Format("2006-01-02"), c-0.3, c+1, c-1, c, 1000+i*3)
	}
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func writeTextJSON(t *testing.T, dir string) string {
	t.Helper()
	content := `[
  {"title": "ACME beats earnings estimates with strong growth", "category": "news", "timestamp": "2023-04-01"},
  {"title": "ACME beats earnings estimates with strong growth", "category": "news", "timestamp": "2023-04-01"},
  {"title": "Traders bullish on ACME after upgrade", "category": "social", "sentiment_score": 0.6}
]`
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Store.Path = filepath.Join(t.TempDir(), "council.db")
	cfg.Predictor.NumTrees = 8
	cfg.Predictor.MaxDepth = 4
	return cfg
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	out, err := execute(t, cfg, "analyze", "--bars", writeBarsCSV(t, dir, 120), "--text", writeTextJSON(t, dir), "--symbol", "ACME", "--json")
	require.NoError(t, err)

	var report struct {
		Symbol  string `json:"symbol"`
		Verdict struct {
			Decision string `json:"decision"`
			Agents   []struct {
				Name string `json:"name"`
			} `json:"agents"`
		} `json:"verdict"`
		Sentiment struct {
			Count int `json:"count"`
		} `json:"sentiment"`
		Prediction struct {
			CurrentPrice float64 `json:"current_price"`
		} `json:"prediction"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "ACME", report.Symbol)
	assert.Contains(t, []string{"BUY", "SELL", "HOLD"}, report.Verdict.Decision)
	assert.Len(t, report.Verdict.Agents, 3)
	assert.Equal(t, 2, report.Sentiment.Count, "duplicate titles are dropped")
	assert.Greater(t, report.Prediction.CurrentPrice, 0.0)
}

func TestAnalyzeText(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, testConfig(t), "analyze", "--bars", writeBarsCSV(t, dir, 120))
	require.NoError(t, err)

	assert.Contains(t, out, "Council Verdict")
	assert.Contains(t, out, "Dr. Chart")
	assert.Contains(t, out, "Not enough history for cycle analysis")
}

func TestAnalyzeRequiresInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Symbol = ""

	_, err := execute(t, cfg, "analyze")
	assert.Error(t, err)
}

func TestImportAnalyzeHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	_, err := execute(t, cfg, "import", "--symbol", "ACME", "--bars", writeBarsCSV(t, dir, 120), "--text", writeTextJSON(t, dir))
	require.NoError(t, err)

	_, err = execute(t, cfg, "analyze", "--symbol", "ACME", "--save", "--json")
	require.NoError(t, err)

	out, err := execute(t, cfg, "history", "--symbol", "ACME", "--json")
	require.NoError(t, err)

	var verdicts []struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		Decision string `json:"decision"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &verdicts))
	require.Len(t, verdicts, 1)
	assert.Equal(t, "ACME", verdicts[0].Symbol)

	out, err = execute(t, cfg, "history", "--id", verdicts[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "ACME Council Verdict")
	assert.Contains(t, out, "Mr. Hype")

	_, err = execute(t, cfg, "history", "--id", "missing")
	assert.Error(t, err)
}

func TestImportRequiresSymbol(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, testConfig(t), "import", "--bars", writeBarsCSV(t, dir, 10))
	assert.Error(t, err)
}

func TestIndicatorsWritesCSV(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "enriched.csv")

	out, err := execute(t, testConfig(t), "indicators", "--bars", writeBarsCSV(t, dir, 80), "--out", outPath, "--tail", "3", "--json")
	require.NoError(t, err)

	var bars []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &bars))
	assert.Len(t, bars, 3)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 80-49+1, "header plus bars after the 50-bar warm-up")
}

func TestIndicatorsList(t *testing.T) {
	out, err := execute(t, testConfig(t), "indicators", "--list", "--json")
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Contains(t, names, "RSI_14")
	assert.Contains(t, names, "MACD_12_26_9")
}

func TestIndicatorsSeries(t *testing.T) {
	dir := t.TempDir()
	bars := writeBarsCSV(t, dir, 60)
	cfg := testConfig(t)

	out, err := execute(t, cfg, "indicators", "--bars", bars, "--series", "MACD_12_26_9", "--tail", "0", "--json")
	require.NoError(t, err)
	var macd []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &macd))
	require.Len(t, macd, 60, "warm-up bars are kept")
	assert.Contains(t, macd[59], "histogram")

	out, err = execute(t, cfg, "indicators", "--bars", bars, "--series", "SMA_50", "--tail", "0", "--json")
	require.NoError(t, err)
	var sma []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &sma))
	require.Len(t, sma, 60)
	assert.Nil(t, sma[0]["SMA_50"], "undefined values are null")
	assert.NotNil(t, sma[59]["SMA_50"])

	out, err = execute(t, cfg, "indicators", "--bars", bars, "--series", "RSI_14", "--tail", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "RSI_14")

	_, err = execute(t, cfg, "indicators", "--bars", bars, "--series", "VWAP")
	assert.Error(t, err)
}

func TestPredictExplicitSentiment(t *testing.T) {
	dir := t.TempDir()
	bars := writeBarsCSV(t, dir, 120)
	cfg := testConfig(t)

	run := func(score string) float64 {
		out, err := execute(t, cfg, "predict", "--bars", bars, "--sentiment", score, "--json")
		require.NoError(t, err)
		var res struct {
			Prediction struct {
				SentimentImpact float64 `json:"sentiment_impact"`
			} `json:"prediction"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		return res.Prediction.SentimentImpact
	}

	assert.InDelta(t, 0.015, run("1"), 1e-12)
	assert.InDelta(t, 0.0, run("0"), 1e-12)
}

func TestCyclesShortHistory(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, testConfig(t), "cycles", "--bars", writeBarsCSV(t, dir, 120), "--json")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["available"])
}

func TestVersion(t *testing.T) {
	out, err := execute(t, testConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}
