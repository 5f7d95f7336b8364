package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "signal-council/internal/errors"
	"signal-council/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", apperrors.ErrDatabaseError, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", apperrors.ErrDatabaseError, err)
	}

	return store, nil
}

// IsBusy reports whether err is a transient lock conflict worth retrying.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !apperrors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Daily OHLCV bars
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	-- Headlines and social posts
	CREATE TABLE IF NOT EXISTS text_items (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		category TEXT NOT NULL,
		sentiment_score REAL NOT NULL DEFAULT 0,
		subjectivity REAL NOT NULL DEFAULT 0,
		scored INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, title)
	);

	-- Council verdicts
	CREATE TABLE IF NOT EXISTS verdicts (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		decision TEXT NOT NULL,
		severity TEXT NOT NULL,
		bullish INTEGER NOT NULL,
		bearish INTEGER NOT NULL,
		neutral INTEGER NOT NULL,
		agents TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timestamp ON candles(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_text_items_symbol ON text_items(symbol);
	CREATE INDEX IF NOT EXISTS idx_text_items_timestamp ON text_items(timestamp);
	CREATE INDEX IF NOT EXISTS idx_verdicts_symbol ON verdicts(symbol);
	CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCandles stores candles, replacing any existing bar at the same timestamp.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles in ascending time order. A zero from or to
// leaves that side of the range open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	query := "SELECT timestamp, open, high, low, close, volume FROM candles WHERE symbol = ?"
	args := []interface{}{symbol}

	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, to.UTC())
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error) {
	// MAX() loses the column type, so order and take the first row instead.
	var timestamp time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM candles WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1
	`, symbol).Scan(&timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	return timestamp, nil
}

// SaveTextItems stores text items. An item whose title is already stored
// for the symbol is replaced.
func (s *SQLiteStore) SaveTextItems(ctx context.Context, symbol string, items []models.TextItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO text_items (id, symbol, timestamp, title, source, category, sentiment_score, subjectivity, scored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if it.ID == "" {
			return apperrors.NewValidationError("text_item.id", it.Title, "must be set before saving")
		}
		scored := 0
		if it.Scored {
			scored = 1
		}
		_, err := stmt.ExecContext(ctx, it.ID, symbol, it.Timestamp.UTC(), it.Title, it.Source, string(it.Category), it.SentimentScore, it.Subjectivity, scored)
		if err != nil {
			return fmt.Errorf("failed to insert text item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTextItems retrieves text items newest first.
func (s *SQLiteStore) GetTextItems(ctx context.Context, filter TextFilter) ([]models.TextItem, error) {
	query := "SELECT id, timestamp, title, COALESCE(source, ''), category, sentiment_score, subjectivity, scored FROM text_items WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query text items: %w", err)
	}
	defer rows.Close()

	var items []models.TextItem
	for rows.Next() {
		var it models.TextItem
		var category string
		var scored int
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Title, &it.Source, &category, &it.SentimentScore, &it.Subjectivity, &scored); err != nil {
			return nil, fmt.Errorf("failed to scan text item: %w", err)
		}
		it.Category = models.Category(category)
		it.Scored = scored == 1
		items = append(items, it)
	}

	return items, rows.Err()
}

// SaveVerdict stores a council verdict. Agent verdicts are kept as JSON.
func (s *SQLiteStore) SaveVerdict(ctx context.Context, verdict *models.CouncilVerdict) error {
	agents, err := json.Marshal(verdict.Agents)
	if err != nil {
		return fmt.Errorf("failed to encode agent verdicts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO verdicts (id, timestamp, symbol, decision, severity, bullish, bearish, neutral, agents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, verdict.ID, verdict.Timestamp.UTC(), verdict.Symbol, string(verdict.Decision), string(verdict.Severity),
		verdict.Tally.Bullish, verdict.Tally.Bearish, verdict.Tally.Neutral, string(agents))
	if err != nil {
		return fmt.Errorf("failed to save verdict: %w", err)
	}
	return nil
}

const verdictColumns = "id, timestamp, symbol, decision, severity, bullish, bearish, neutral, agents"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerdict(row rowScanner) (*models.CouncilVerdict, error) {
	var v models.CouncilVerdict
	var decision, severity, agentsJSON string

	if err := row.Scan(&v.ID, &v.Timestamp, &v.Symbol, &decision, &severity,
		&v.Tally.Bullish, &v.Tally.Bearish, &v.Tally.Neutral, &agentsJSON); err != nil {
		return nil, err
	}
	v.Decision = models.Decision(decision)
	v.Severity = models.Severity(severity)
	if err := json.Unmarshal([]byte(agentsJSON), &v.Agents); err != nil {
		return nil, apperrors.Wrapf(err, "failed to decode agent verdicts for %s", v.ID)
	}
	return &v, nil
}

// GetVerdicts retrieves verdicts newest first.
func (s *SQLiteStore) GetVerdicts(ctx context.Context, filter VerdictFilter) ([]models.CouncilVerdict, error) {
	query := "SELECT " + verdictColumns + " FROM verdicts WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Decision != "" {
		query += " AND decision = ?"
		args = append(args, string(filter.Decision))
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []models.CouncilVerdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		verdicts = append(verdicts, *v)
	}

	return verdicts, rows.Err()
}

// GetVerdictByID retrieves a single verdict.
func (s *SQLiteStore) GetVerdictByID(ctx context.Context, id string) (*models.CouncilVerdict, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+verdictColumns+" FROM verdicts WHERE id = ?", id)
	v, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDataError("verdict", id, "not found", apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}
	return v, nil
}
