package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"papertrade/internal/order"
	"papertrade/internal/venue"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Timestamp     int64          `gorm:"column:ts;index"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Price         float64        `gorm:"column:price"`
	Mid           float64        `gorm:"column:mid"`
	SlippageBps   float64        `gorm:"column:slippage_bps"`
	Notional      float64        `gorm:"column:notional"`
	Fee           float64        `gorm:"column:fee"`
	RealizedDelta float64        `gorm:"column:realized_delta"`
	RealizedTotal float64        `gorm:"column:realized_total"`
	Unrealized    float64        `gorm:"column:unrealized"`
	Equity        float64        `gorm:"column:equity_after"`
	Cash          float64        `gorm:"column:cash_after"`
	PositionQty   float64        `gorm:"column:pos_qty"`
	PositionAvg   float64        `gorm:"column:pos_avg"`
	Reason        string         `gorm:"column:reason"`
	Meta          datatypes.JSON `gorm:"column:meta"`
}

func (tradeModel) TableName() string { return "trades" }

type equityModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	Timestamp  int64   `gorm:"column:ts;index"`
	Equity     float64 `gorm:"column:equity"`
	Cash       float64 `gorm:"column:cash"`
	Realized   float64 `gorm:"column:realized"`
	Unrealized float64 `gorm:"column:unrealized"`
}

func (equityModel) TableName() string { return "equity" }

// SQLite persists trades and equity samples in a single SQLite file and
// backs the HTTP read endpoints.
type SQLite struct {
	db *gorm.DB
}

func NewSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite sink requires path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&tradeModel{}, &equityModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &SQLite{db: db}, nil
}

func (s *SQLite) LogTrade(rec venue.FillRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite sink not initialized")
	}
	meta, _ := json.Marshal(rec)
	model := tradeModel{
		Timestamp:     rec.Timestamp.UnixMilli(),
		Symbol:        strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Side:          string(rec.Side),
		Price:         rec.Price,
		Mid:           rec.Mid,
		SlippageBps:   rec.SlippageBps,
		Notional:      rec.Notional,
		Fee:           rec.Fee,
		RealizedDelta: rec.RealizedDelta,
		RealizedTotal: rec.RealizedTotal,
		Unrealized:    rec.Unrealized,
		Equity:        rec.Equity,
		Cash:          rec.Cash,
		PositionQty:   rec.PositionQty,
		PositionAvg:   rec.PositionAvg,
		Reason:        strings.TrimSpace(rec.Reason),
		Meta:          datatypes.JSON(meta),
	}
	return s.db.Create(&model).Error
}

func (s *SQLite) LogEquity(sample EquitySample) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite sink not initialized")
	}
	model := equityModel{
		Timestamp:  sample.Timestamp.UnixMilli(),
		Equity:     sample.Equity,
		Cash:       sample.Cash,
		Realized:   sample.Realized,
		Unrealized: sample.Unrealized,
	}
	return s.db.Create(&model).Error
}

// RecentTrades returns the latest fills, newest first, optionally filtered
// by symbol.
func (s *SQLite) RecentTrades(ctx context.Context, symbol string, limit int) ([]venue.FillRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite sink not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Model(&tradeModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	var models []tradeModel
	if err := query.Order("ts DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]venue.FillRecord, 0, len(models))
	for _, m := range models {
		out = append(out, tradeModelToRecord(m))
	}
	return out, nil
}

// EquityCurve returns equity samples in chronological order, optionally
// starting after since.
func (s *SQLite) EquityCurve(ctx context.Context, since time.Time, limit int) ([]EquitySample, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite sink not initialized")
	}
	if limit <= 0 {
		limit = 1000
	}
	query := s.db.WithContext(ctx).Model(&equityModel{}).Order("ts ASC, id ASC").Limit(limit)
	if !since.IsZero() {
		query = query.Where("ts > ?", since.UnixMilli())
	}
	var models []equityModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]EquitySample, 0, len(models))
	for _, m := range models {
		out = append(out, EquitySample{
			Timestamp:  time.UnixMilli(m.Timestamp),
			Equity:     m.Equity,
			Cash:       m.Cash,
			Realized:   m.Realized,
			Unrealized: m.Unrealized,
		})
	}
	return out, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func tradeModelToRecord(m tradeModel) venue.FillRecord {
	rec := venue.FillRecord{
		Timestamp:     time.UnixMilli(m.Timestamp),
		Symbol:        m.Symbol,
		Price:         m.Price,
		Mid:           m.Mid,
		SlippageBps:   m.SlippageBps,
		Notional:      m.Notional,
		Fee:           m.Fee,
		RealizedDelta: m.RealizedDelta,
		RealizedTotal: m.RealizedTotal,
		Unrealized:    m.Unrealized,
		Equity:        m.Equity,
		Cash:          m.Cash,
		PositionQty:   m.PositionQty,
		PositionAvg:   m.PositionAvg,
		Reason:        m.Reason,
	}
	if side, ok := order.ParseSide(m.Side); ok {
		rec.Side = side
	}
	return rec
}
