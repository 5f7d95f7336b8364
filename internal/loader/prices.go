// Package loader reads price bars and text items from files and writes
// enriched bars back out.
package loader

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// priceRow is one line of a daily price CSV.
type priceRow struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"01/02/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ReadCandles parses a CSV with the header date,open,high,low,close,volume.
// Header names are matched case-insensitively and extra columns are ignored.
// Rows are sorted by date and then validated.
func ReadCandles(r io.Reader) ([]models.Candle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewDataError("csv", "", "failed to read price rows", err)
	}

	var rows []*priceRow
	if err := gocsv.UnmarshalBytes(normalizeHeader(data), &rows); err != nil {
		return nil, apperrors.NewDataError("csv", "", "failed to parse price rows", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, apperrors.NewDataError("csv", "", fmt.Sprintf("row %d", i+1), err)
		}
		volume, err := parseVolume(row.Volume)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    volume,
		})
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	if err := models.ValidateCandles(candles); err != nil {
		return nil, err
	}

	return candles, nil
}

// parseVolume rounds v to a share count. Values that are not finite or do not
// fit an int64 are rejected; negative counts are left to ValidateCandles.
func parseVolume(v float64) (int64, error) {
	rounded := math.Round(v)
	if math.IsNaN(rounded) || rounded >= math.MaxInt64 || rounded < math.MinInt64 {
		return 0, apperrors.NewValidationError("volume", v, "must be a finite share count")
	}
	return int64(rounded), nil
}

func normalizeHeader(data []byte) []byte {
	header, rest, found := strings.Cut(string(data), "\n")
	header = strings.ToLower(strings.TrimPrefix(header, "\ufeff"))
	if !found {
		return []byte(header)
	}
	return []byte(header + "\n" + rest)
}

// LoadCandles reads a price CSV from disk.
func LoadCandles(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("csv", path, "failed to open price file", err)
	}
	defer f.Close()

	candles, err := ReadCandles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return candles, nil
}

// enrichedRow is the CSV shape of an enriched bar.
type enrichedRow struct {
	Date           string  `csv:"date"`
	Open           float64 `csv:"open"`
	High           float64 `csv:"high"`
	Low            float64 `csv:"low"`
	Close          float64 `csv:"close"`
	Volume         int64   `csv:"volume"`
	SMAShort       float64 `csv:"sma_short"`
	SMALong        float64 `csv:"sma_long"`
	RSI            float64 `csv:"rsi"`
	BollingerUpper float64 `csv:"bollinger_upper"`
	BollingerLower float64 `csv:"bollinger_lower"`
	DailyReturn    float64 `csv:"daily_return"`
	MACD           float64 `csv:"macd"`
	MACDSignal     float64 `csv:"macd_signal"`
	MACDHist       float64 `csv:"macd_hist"`
	ATR            float64 `csv:"atr"`
	OBV            float64 `csv:"obv"`
}

// WriteEnriched writes enriched bars as CSV, one row per bar.
func WriteEnriched(w io.Writer, bars []models.EnrichedBar) error {
	rows := make([]*enrichedRow, len(bars))
	for i, b := range bars {
		rows[i] = &enrichedRow{
			Date:           b.Timestamp.Format("2006-01-02"),
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			Volume:         b.Volume,
			SMAShort:       b.SMAShort,
			SMALong:        b.SMALong,
			RSI:            b.RSI,
			BollingerUpper: b.BollingerUpper,
			BollingerLower: b.BollingerLower,
			DailyReturn:    b.DailyReturn,
			MACD:           b.MACD,
			MACDSignal:     b.MACDSignal,
			MACDHist:       b.MACDHist,
			ATR:            b.ATR,
			OBV:            b.OBV,
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return apperrors.Wrap(err, "writing enriched bars")
	}
	return nil
}
