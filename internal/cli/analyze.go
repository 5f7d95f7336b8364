package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"signal-council/internal/analysis/cycles"
	"signal-council/internal/analysis/indicators"
	"signal-council/internal/logging"
	"signal-council/internal/loader"
	"signal-council/internal/models"
	"signal-council/internal/pipeline"
	"signal-council/internal/predictor"
	"signal-council/internal/sentiment"
	"signal-council/internal/store"
)

// addAnalysisCommands adds analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newIndicatorsCmd(app))
	rootCmd.AddCommand(newPredictCmd(app))
	rootCmd.AddCommand(newCyclesCmd(app))
}

func (a *App) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Indicators: a.Config.IndicatorOptions(),
		Predictor:  a.Config.PredictorConfig(),
		Analysis:   a.Config.AnalysisOptions(),
	}
}

// inputs holds bars and text for a command, read from files or the store.
type inputs struct {
	symbol    string
	candles   []models.Candle
	items     []models.TextItem
	fromStore bool
}

// loadInputs reads --bars and --text. Without --bars, previously imported
// bars and text for the symbol are read from the store.
func (a *App) loadInputs(ctx context.Context, cmd *cobra.Command) (*inputs, error) {
	in := &inputs{symbol: a.symbol(cmd)}
	barsPath, _ := cmd.Flags().GetString("bars")
	textPath, _ := cmd.Flags().GetString("text")

	switch {
	case barsPath != "":
		candles, err := loader.LoadCandles(barsPath)
		if err != nil {
			return nil, err
		}
		in.candles = candles
	case in.symbol != "":
		s, err := a.Store()
		if err != nil {
			return nil, err
		}
		candles, err := s.GetCandles(ctx, in.symbol, time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no stored bars for %s; run 'council import' or pass --bars", in.symbol)
		}
		in.candles = candles
		in.fromStore = true
	default:
		return nil, fmt.Errorf("either --bars or --symbol with imported data is required")
	}

	switch {
	case textPath != "":
		items, err := loader.LoadTextItems(textPath)
		if err != nil {
			return nil, err
		}
		in.items = items
	case in.fromStore:
		s, err := a.Store()
		if err != nil {
			return nil, err
		}
		items, err := s.GetTextItems(ctx, store.TextFilter{Symbol: in.symbol})
		if err != nil {
			return nil, err
		}
		in.items = items
	}

	a.Logger.Debug().
		Str("symbol", in.symbol).
		Int("bars", len(in.candles)).
		Int("items", len(in.items)).
		Bool("from_store", in.fromStore).
		Msg("Inputs loaded")

	return in, nil
}

func addInputFlags(cmd *cobra.Command, withText bool) {
	cmd.Flags().String("bars", "", "price CSV with date,open,high,low,close,volume")
	cmd.Flags().String("symbol", "", "instrument symbol (default from config)")
	if withText {
		cmd.Flags().String("text", "", "JSON file of news and social items")
	}
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full council pipeline",
		Long: `Run every stage on one instrument:
- Enrich bars with SMA, RSI, Bollinger Bands, MACD, ATR and OBV
- Score and summarize news and social sentiment
- Train a random forest on the enriched history and forecast the next return
- Decompose the close series and find dominant cycles (long histories only)
- Let the technical, sentiment and quant agents vote on a verdict`,
		Example: `  council analyze --bars prices.csv --text items.json --symbol ACME
  council analyze --symbol ACME --save
  council analyze --bars prices.csv --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			in, err := app.loadInputs(ctx, cmd)
			if err != nil {
				output.Error("Failed to load inputs: %v", err)
				return err
			}

			p := pipeline.New(app.pipelineConfig()).WithLogger(app.Logger)
			if save, _ := cmd.Flags().GetBool("save"); save {
				s, err := app.Store()
				if err != nil {
					output.Error("Failed to open store: %v", err)
					return err
				}
				p.WithStore(s)
			}

			if !output.IsJSON() {
				output.Info("Analyzing %s (%d bars, %d text items)...", displaySymbol(in.symbol), len(in.candles), len(in.items))
			}

			report, err := p.Run(ctx, pipeline.Input{
				Symbol:  in.symbol,
				Candles: in.candles,
				Items:   in.items,
			})
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			renderReport(output, report)
			return nil
		},
	}

	addInputFlags(cmd, true)
	cmd.Flags().Bool("save", false, "store bars, text items and the verdict")

	return cmd
}

func displaySymbol(symbol string) string {
	if symbol == "" {
		return "instrument"
	}
	return strings.ToUpper(symbol)
}

func renderReport(output *Output, r *pipeline.Report) {
	v := r.Verdict
	output.Println()
	output.Box(fmt.Sprintf("%s Council Verdict", displaySymbol(r.Symbol)), []string{
		"Decision: " + output.Severity(v.Severity, v.Label()),
		fmt.Sprintf("Votes:    %d bullish / %d bearish / %d neutral", v.Tally.Bullish, v.Tally.Bearish, v.Tally.Neutral),
		output.DimText(fmt.Sprintf("Verdict %s at %s", v.ID, v.Timestamp.Format(time.RFC3339))),
	})
	output.Println()

	renderAgents(output, v.Agents)
	output.Println()

	renderPrediction(output, r.Prediction, r.Evaluation, r.TopFeatures)
	output.Println()

	output.Bold("Sentiment")
	s := r.Sentiment
	output.Printf("  Overall: %s (%d items)\n", output.Signed(s.OverallMean, fmt.Sprintf("%+.3f", s.OverallMean)), s.Count)
	output.Printf("  News:    %s (%d)\n", output.Signed(s.NewsMean, fmt.Sprintf("%+.3f", s.NewsMean)), s.NewsCount)
	output.Printf("  Social:  %s (%d)\n", output.Signed(s.SocialMean, fmt.Sprintf("%+.3f", s.SocialMean)), s.SocialCount)
	output.Println()

	output.Bold("Cycles")
	if r.Dominant != nil {
		output.Printf("  Dominant cycle: %.1f bars (amplitude %.2f)\n", r.Dominant.Length, r.Dominant.Amplitude)
	} else if r.Analysis == nil {
		output.Dim("  Not enough history for cycle analysis")
	} else {
		output.Dim("  No cycle inside the configured band")
	}
	output.Println()

	renderLatest(output, r.Latest)
	output.Dim("Completed in %s", FormatDuration(r.Duration))
}

func renderAgents(output *Output, verdicts []models.AgentVerdict) {
	table := NewTable(output, "Agent", "Role", "Vote", "Conf", "Reasoning")
	for _, a := range verdicts {
		table.AddRow(a.Name, a.Role, output.Vote(a.Vote), FormatConfidence(a.Confidence), a.Reason())
	}
	table.Render()
}

func renderPrediction(output *Output, p *models.PredictionResult, eval *models.Evaluation, top []pipeline.FeatureWeight) {
	output.Bold("Forecast")
	output.Printf("  Current price:    %s\n", FormatPrice(p.CurrentPrice))
	output.Printf("  Technical return: %s\n", output.Signed(p.TechnicalReturn, FormatReturn(p.TechnicalReturn)))
	output.Printf("  Sentiment impact: %s\n", output.Signed(p.SentimentImpact, FormatReturn(p.SentimentImpact)))
	output.Printf("  Final return:     %s\n", output.Signed(p.FinalPredictedReturn, FormatReturn(p.FinalPredictedReturn)))
	output.Printf("  Predicted price:  %s\n", FormatPrice(p.PredictedPrice))

	if eval != nil {
		output.Printf("  Model R2:         %.3f  (directional accuracy %s, MAE %s)\n",
			eval.R2, FormatConfidence(eval.DirectionalAccuracy), FormatReturn(eval.MAE))
		output.Dim("  Trained on %d rows, tested on %d", eval.TrainSize, eval.TestSize)
	}

	if len(top) > 0 {
		names := make([]string, len(top))
		for i, f := range top {
			names[i] = fmt.Sprintf("%s %.1f%%", f.Name, f.Weight*100)
		}
		output.Printf("  Top features:     %s\n", strings.Join(names, ", "))
	}
}

func renderLatest(output *Output, b models.EnrichedBar) {
	output.Bold("Latest Bar (%s)", b.Timestamp.Format("2006-01-02"))
	output.Printf("  Close: %s  Volume: %s  Return: %s\n", FormatPrice(b.Close), FormatVolume(b.Volume), FormatReturn(b.DailyReturn))
	output.Printf("  SMA:   %s / %s\n", FormatPrice(b.SMAShort), FormatPrice(b.SMALong))
	output.Printf("  RSI:   %s\n", FormatFloat(b.RSI, 1))
	output.Printf("  Bands: %s - %s\n", FormatPrice(b.BollingerLower), FormatPrice(b.BollingerUpper))
	output.Printf("  MACD:  %s (signal %s, hist %s)\n", FormatFloat(b.MACD, 3), FormatFloat(b.MACDSignal, 3), FormatFloat(b.MACDHist, 3))
	output.Printf("  ATR:   %s  OBV: %s\n", FormatFloat(b.ATR, 2), FormatNumber(int64(b.OBV)))
}

func newIndicatorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "Compute enriched indicator bars",
		Example: `  council indicators --bars prices.csv --tail 5
  council indicators --bars prices.csv --out enriched.csv
  council indicators --list
  council indicators --bars prices.csv --series MACD_12_26_9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)
			enricher := indicators.NewEnricher(app.Config.IndicatorOptions()).WithLogger(app.Logger)

			if list, _ := cmd.Flags().GetBool("list"); list {
				names := enricher.Engine().ListIndicators()
				if output.IsJSON() {
					return output.JSON(names)
				}
				for _, name := range names {
					output.Println(name)
				}
				return nil
			}

			in, err := app.loadInputs(ctx, cmd)
			if err != nil {
				output.Error("Failed to load inputs: %v", err)
				return err
			}

			tail, _ := cmd.Flags().GetInt("tail")
			if name, _ := cmd.Flags().GetString("series"); name != "" {
				return renderSeries(ctx, output, enricher.Engine(), name, in.candles, tail)
			}

			bars, err := enricher.Enrich(ctx, in.candles)
			if err != nil {
				output.Error("Enrichment failed: %v", err)
				return err
			}

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := writeEnrichedFile(out, bars); err != nil {
					output.Error("Failed to write %s: %v", out, err)
					return err
				}
				if !output.IsJSON() {
					output.Success("Wrote %d enriched bars to %s", len(bars), out)
				}
			}

			shown := bars
			if tail > 0 && len(shown) > tail {
				shown = shown[len(shown)-tail:]
			}

			if output.IsJSON() {
				return output.JSON(shown)
			}

			output.Info("%d of %d bars enriched (%d dropped during warm-up)", len(bars), len(in.candles), len(in.candles)-len(bars))
			table := NewTable(output, "Date", "Close", "SMA S", "SMA L", "RSI", "MACD", "Signal", "BB Low", "BB Up", "ATR", "OBV")
			for _, b := range shown {
				table.AddRow(
					b.Timestamp.Format("2006-01-02"),
					FormatPrice(b.Close),
					FormatPrice(b.SMAShort),
					FormatPrice(b.SMALong),
					FormatFloat(b.RSI, 1),
					FormatFloat(b.MACD, 3),
					FormatFloat(b.MACDSignal, 3),
					FormatPrice(b.BollingerLower),
					FormatPrice(b.BollingerUpper),
					FormatFloat(b.ATR, 2),
					FormatNumber(int64(b.OBV)),
				)
			}
			table.Render()
			return nil
		},
	}

	addInputFlags(cmd, false)
	cmd.Flags().Int("tail", 10, "number of latest bars to show (0 for all)")
	cmd.Flags().String("out", "", "write all enriched bars to this CSV file")
	cmd.Flags().String("series", "", "show one raw indicator series by name, warm-up bars included")
	cmd.Flags().Bool("list", false, "list registered indicator names")

	return cmd
}

// renderSeries prints the latest tail rows of one named indicator. Single
// and multi-value indicators share the lookup; undefined values print as
// n/a in tables and null in JSON.
func renderSeries(ctx context.Context, output *Output, engine *indicators.Engine, name string, candles []models.Candle, tail int) error {
	columns, err := calculateSeries(ctx, engine, name, candles)
	if err != nil {
		output.Error("Failed to calculate %s: %v", name, err)
		return err
	}

	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if tail > 0 && len(candles) > tail {
		start = len(candles) - tail
	}

	if output.IsJSON() {
		rows := make([]map[string]interface{}, 0, len(candles)-start)
		for i := start; i < len(candles); i++ {
			row := map[string]interface{}{"date": candles[i].Timestamp.Format("2006-01-02")}
			for _, k := range keys {
				row[k] = definedOrNil(columns[k][i])
			}
			rows = append(rows, row)
		}
		return output.JSON(rows)
	}

	table := NewTable(output, append([]string{"Date"}, keys...)...)
	for i := start; i < len(candles); i++ {
		cells := []string{candles[i].Timestamp.Format("2006-01-02")}
		for _, k := range keys {
			cells = append(cells, FormatFloat(columns[k][i], 4))
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}

// calculateSeries looks name up as a single-value indicator first, then as a
// multi-value one. Single-value results come back under the indicator name.
func calculateSeries(ctx context.Context, engine *indicators.Engine, name string, candles []models.Candle) (map[string][]float64, error) {
	values, err := engine.Calculate(ctx, name, candles)
	if err == nil {
		return map[string][]float64{name: values}, nil
	}
	if !errors.Is(err, indicators.ErrUnknownIndicator) {
		return nil, err
	}
	return engine.CalculateMulti(ctx, name, candles)
}

func definedOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeEnrichedFile(path string, bars []models.EnrichedBar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := loader.WriteEnriched(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newPredictCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the next return",
		Long: `Train the random forest on enriched bars and forecast the next return.
The sentiment adjustment uses --sentiment when given, otherwise the mean
score of the --text items, otherwise zero.`,
		Example: `  council predict --bars prices.csv
  council predict --bars prices.csv --sentiment 0.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			in, err := app.loadInputs(ctx, cmd)
			if err != nil {
				output.Error("Failed to load inputs: %v", err)
				return err
			}

			bars, err := indicators.NewEnricher(app.Config.IndicatorOptions()).WithLogger(app.Logger).Enrich(ctx, in.candles)
			if err != nil {
				output.Error("Enrichment failed: %v", err)
				return err
			}

			score, err := sentimentScore(logging.WithLogger(ctx, app.Logger), cmd, in.items)
			if err != nil {
				return err
			}

			model := predictor.New(app.Config.PredictorConfig(), nil).WithLogger(app.Logger)
			start := time.Now()
			eval, err := model.Train(ctx, bars)
			if err != nil {
				output.Error("Training failed: %v", err)
				return err
			}
			logging.LogTraining(app.Logger, eval, time.Since(start))

			prediction, err := model.PredictWithSentiment(bars, score)
			if err != nil {
				output.Error("Prediction failed: %v", err)
				return err
			}
			top := pipeline.TopFeatures(prediction.FeatureImportance, 5)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":          in.symbol,
					"sentiment_score": score,
					"evaluation":      eval,
					"prediction":      prediction,
					"top_features":    top,
				})
			}

			output.Info("Forecast for %s using sentiment %+.3f", displaySymbol(in.symbol), score)
			renderPrediction(output, prediction, eval, top)
			return nil
		},
	}

	addInputFlags(cmd, true)
	cmd.Flags().Float64("sentiment", 0, "sentiment score in [-1, 1] to fuse into the forecast")

	return cmd
}

// sentimentScore picks the explicit flag, else the mean of the text items.
func sentimentScore(ctx context.Context, cmd *cobra.Command, items []models.TextItem) (float64, error) {
	if cmd.Flags().Changed("sentiment") {
		score, _ := cmd.Flags().GetFloat64("sentiment")
		return score, nil
	}
	if len(items) == 0 {
		return 0, nil
	}
	scored, err := sentiment.ScoreAll(ctx, sentiment.NewLexiconScorer(), sentiment.Prepare(items))
	if err != nil {
		return 0, err
	}
	return sentiment.Summarize(scored).OverallMean, nil
}

func newCyclesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Decompose closes and list dominant cycles",
		Example: `  council cycles --bars prices.csv
  council cycles --bars prices.csv --period 20 --top 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			in, err := app.loadInputs(ctx, cmd)
			if err != nil {
				output.Error("Failed to load inputs: %v", err)
				return err
			}

			bars, err := indicators.NewEnricher(app.Config.IndicatorOptions()).WithLogger(app.Logger).Enrich(ctx, in.candles)
			if err != nil {
				output.Error("Enrichment failed: %v", err)
				return err
			}

			opts := app.Config.AnalysisOptions()
			if cmd.Flags().Changed("period") {
				opts.SeasonalPeriod, _ = cmd.Flags().GetInt("period")
			}
			if cmd.Flags().Changed("top") {
				opts.TopCycles, _ = cmd.Flags().GetInt("top")
			}

			analysis, err := cycles.Analyze(models.Closes(bars), opts)
			if err != nil {
				output.Error("Cycle analysis failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(cyclesJSON(analysis, len(bars)))
			}

			if analysis == nil {
				output.Warning("Cycle analysis needs more than %d enriched bars, have %d", opts.MinObservations, len(bars))
				return nil
			}

			d := analysis.Decomposition
			last := len(d.Seasonal) - 1
			output.Bold("Seasonal Decomposition (period %d)", d.Period)
			output.Printf("  Latest seasonal: %s\n", FormatFloat(d.Seasonal[last], 3))
			output.Printf("  Seasonal slope:  %s\n", FormatFloat(d.Seasonal[last]-d.Seasonal[last-1], 4))
			output.Printf("  Latest trend:    %s\n", FormatFloat(lastDefined(d.Trend), 2))
			output.Println()

			if len(analysis.Cycles) == 0 {
				output.Dim("No cycle between %.0f and %.0f bars", opts.CycleMin, opts.CycleMax)
				return nil
			}
			table := NewTable(output, "#", "Length (bars)", "Amplitude")
			for i, c := range analysis.Cycles {
				table.AddRow(fmt.Sprintf("%d", i+1), FormatFloat(c.Length, 1), FormatFloat(c.Amplitude, 2))
			}
			table.Render()
			return nil
		},
	}

	addInputFlags(cmd, false)
	cmd.Flags().Int("period", 0, "seasonal period override")
	cmd.Flags().Int("top", 0, "number of cycles to list")

	return cmd
}

// cyclesJSON flattens an analysis, replacing NaN trend values with nulls.
func cyclesJSON(a *cycles.Analysis, bars int) map[string]interface{} {
	out := map[string]interface{}{"bars": bars, "available": a != nil}
	if a == nil {
		return out
	}
	trend := make([]*float64, len(a.Decomposition.Trend))
	for i, v := range a.Decomposition.Trend {
		if !math.IsNaN(v) {
			v := v
			trend[i] = &v
		}
	}
	out["period"] = a.Decomposition.Period
	out["trend"] = trend
	out["seasonal"] = a.Decomposition.Seasonal
	out["cycles"] = a.Cycles
	return out
}

// lastDefined returns the last non-NaN value, or NaN if none.
func lastDefined(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}
