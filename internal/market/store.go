package market

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// CandleStore keeps one sqlite file per symbol@timeframe under a root
// directory and serves the preloaded series for replay mode.
type CandleStore struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCandleStore(root string) (*CandleStore, error) {
	if root == "" {
		return nil, fmt.Errorf("candle store root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CandleStore{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *CandleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *CandleStore) dbPath(symbol, timeframe string) string {
	name := strings.ToUpper(symbol) + "_" + strings.ToLower(timeframe) + ".db"
	return filepath.Join(s.root, name)
}

func (s *CandleStore) db(symbol, timeframe string) (*sql.DB, error) {
	if symbol == "" || timeframe == "" {
		return nil, fmt.Errorf("symbol/timeframe cannot be empty")
	}
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(timeframe)
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := s.dbPath(symbol, timeframe)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS candles (
		open_time  INTEGER PRIMARY KEY,
		close_time INTEGER NOT NULL,
		open       REAL NOT NULL,
		high       REAL NOT NULL,
		low        REAL NOT NULL,
		close      REAL NOT NULL,
		volume     REAL NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	s.dbs[key] = db
	return db, nil
}

// UpsertCandles writes candles idempotently keyed on open_time.
func (s *CandleStore) UpsertCandles(ctx context.Context, symbol, timeframe string, candles []Candle) error {
	if len(candles) == 0 {
		return nil
	}
	db, err := s.db(symbol, timeframe)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candles
		(open_time, close_time, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(open_time) DO UPDATE SET
		close_time=excluded.close_time, open=excluded.open, high=excluded.high,
		low=excluded.low, close=excluded.close, volume=excluded.volume`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RangeCandles returns candles with open_time in [start, end] ascending.
// A zero end means no upper bound.
func (s *CandleStore) RangeCandles(ctx context.Context, symbol, timeframe string, start, end int64) ([]Candle, error) {
	db, err := s.db(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	query := `SELECT open_time, close_time, open, high, low, close, volume
		FROM candles WHERE open_time >= ?`
	args := []any{start}
	if end > 0 {
		query += ` AND open_time <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY open_time ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ImportCSV loads a candle series from a CSV file with the column order
// timestamp,open,high,low,close,volume (header row optional) and stores it
// for replay.
func (s *CandleStore) ImportCSV(ctx context.Context, symbol, timeframe, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var candles []Candle
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if first {
			first = false
			if len(rec) > 0 && !isNumeric(rec[0]) {
				continue
			}
		}
		if len(rec) < 6 {
			continue
		}
		c := Candle{
			OpenTime: parseInt(rec[0]),
			Open:     parseFloat(rec[1]),
			High:     parseFloat(rec[2]),
			Low:      parseFloat(rec[3]),
			Close:    parseFloat(rec[4]),
			Volume:   parseFloat(rec[5]),
		}
		c.CloseTime = c.OpenTime
		candles = append(candles, c)
	}
	if err := s.UpsertCandles(ctx, symbol, timeframe, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err == nil {
		return v
	}
	if f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64); ferr == nil {
		return int64(f)
	}
	return 0
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
