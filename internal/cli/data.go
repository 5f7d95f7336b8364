package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"signal-council/internal/loader"
	"signal-council/internal/models"
	"signal-council/internal/sentiment"
	"signal-council/internal/store"
)

// addDataCommands adds data management commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import bars and text items into the local store",
		Long: `Import price bars and news/social items for a symbol. Existing bars
with the same date and items with the same title are replaced. Items are
scored on import when they carry no score.`,
		Example: `  council import --symbol ACME --bars prices.csv
  council import --symbol ACME --text items.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			symbol, _ := cmd.Flags().GetString("symbol")
			barsPath, _ := cmd.Flags().GetString("bars")
			textPath, _ := cmd.Flags().GetString("text")
			if barsPath == "" && textPath == "" {
				err := fmt.Errorf("nothing to import: pass --bars and/or --text")
				output.Error("%v", err)
				return err
			}

			s, err := app.Store()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			result := map[string]interface{}{"symbol": symbol}

			if barsPath != "" {
				candles, err := loader.LoadCandles(barsPath)
				if err != nil {
					output.Error("Failed to read bars: %v", err)
					return err
				}
				if err := s.SaveCandles(ctx, symbol, candles); err != nil {
					output.Error("Failed to save bars: %v", err)
					return err
				}
				latest, err := s.GetCandlesFreshness(ctx, symbol)
				if err != nil {
					return err
				}
				result["bars"] = len(candles)
				result["latest_bar"] = latest
				if !output.IsJSON() {
					output.Success("Imported %d bars for %s (%s to %s)", len(candles), symbol,
						candles[0].Timestamp.Format("2006-01-02"), candles[len(candles)-1].Timestamp.Format("2006-01-02"))
					output.Dim("Store holds bars through %s", latest.Format("2006-01-02"))
				}
			}

			if textPath != "" {
				items, err := loader.LoadTextItems(textPath)
				if err != nil {
					output.Error("Failed to read text items: %v", err)
					return err
				}
				scored, err := sentiment.ScoreAll(ctx, sentiment.NewLexiconScorer(), sentiment.Prepare(items))
				if err != nil {
					return err
				}
				if err := s.SaveTextItems(ctx, symbol, scored); err != nil {
					output.Error("Failed to save text items: %v", err)
					return err
				}
				result["items"] = len(scored)
				if !output.IsJSON() {
					output.Success("Imported %d text items for %s (%d duplicates dropped)", len(scored), symbol, len(items)-len(scored))
				}
			}

			app.Logger.Info().Str("symbol", symbol).Interface("result", result).Msg("Import complete")

			if output.IsJSON() {
				return output.JSON(result)
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "instrument symbol")
	cmd.Flags().String("bars", "", "price CSV with date,open,high,low,close,volume")
	cmd.Flags().String("text", "", "JSON file of news and social items")
	_ = cmd.MarkFlagRequired("symbol")

	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored council verdicts",
		Example: `  council history
  council history --symbol ACME --decision BUY --days 30
  council history --id 6f1c2b9e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := commandContext(cmd)

			if id, _ := cmd.Flags().GetString("id"); id != "" {
				return showVerdict(ctx, app, output, id)
			}

			filter := store.VerdictFilter{}
			filter.Symbol, _ = cmd.Flags().GetString("symbol")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if decision, _ := cmd.Flags().GetString("decision"); decision != "" {
				filter.Decision = models.Decision(strings.ToUpper(decision))
			}
			if days, _ := cmd.Flags().GetInt("days"); days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}

			s, err := app.Store()
			if err != nil {
				output.Error("Failed to open store: %v", err)
				return err
			}

			verdicts, err := s.GetVerdicts(ctx, filter)
			if err != nil {
				output.Error("Failed to read verdicts: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(verdicts)
			}

			if len(verdicts) == 0 {
				output.Dim("No verdicts stored yet. Run 'council analyze --save'.")
				return nil
			}

			table := NewTable(output, "Date", "Symbol", "Decision", "Bull", "Bear", "Neutral", "ID")
			for _, v := range verdicts {
				table.AddRow(
					v.Timestamp.Local().Format(app.Config.UI.DateFormat),
					v.Symbol,
					output.Severity(v.Severity, string(v.Decision)),
					fmt.Sprintf("%d", v.Tally.Bullish),
					fmt.Sprintf("%d", v.Tally.Bearish),
					fmt.Sprintf("%d", v.Tally.Neutral),
					output.DimText(TruncateString(v.ID, 8)),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("id", "", "show one verdict with every agent's reasoning")
	cmd.Flags().String("symbol", "", "filter by symbol")
	cmd.Flags().String("decision", "", "filter by decision (BUY, SELL, HOLD)")
	cmd.Flags().Int("days", 0, "only verdicts from the last N days")
	cmd.Flags().Int("limit", 20, "maximum verdicts to show")

	return cmd
}

func showVerdict(ctx context.Context, app *App, output *Output, id string) error {
	s, err := app.Store()
	if err != nil {
		output.Error("Failed to open store: %v", err)
		return err
	}

	v, err := s.GetVerdictByID(ctx, id)
	if err != nil {
		output.Error("Failed to read verdict: %v", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(v)
	}

	output.Box(fmt.Sprintf("%s Council Verdict", displaySymbol(v.Symbol)), []string{
		"Decision: " + output.Severity(v.Severity, v.Label()),
		fmt.Sprintf("Votes:    %d bullish / %d bearish / %d neutral", v.Tally.Bullish, v.Tally.Bearish, v.Tally.Neutral),
		output.DimText("Recorded " + v.Timestamp.Local().Format(time.RFC1123)),
	})
	output.Println()
	renderAgents(output, v.Agents)
	return nil
}
