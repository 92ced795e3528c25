package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Execution is the SQL row for one history entry.
type Execution struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	Symbol        string          `gorm:"index"`
	Action        string          `gorm:"index"`
	OrderType     string
	Direction     string
	Outcome       string          `gorm:"index"`
	Error         string
	ObservedPrice decimal.Decimal `gorm:"type:decimal(20,8)"`
	Signal        string          // JSON body minus auth_id
	Steps         string          // JSON array of pipeline steps
	DurationMs    int64
	ExecutedAt    time.Time `gorm:"index"`
	CreatedAt     time.Time
}

// Database is a history sink backed by PostgreSQL or SQLite.
type Database struct {
	db *gorm.DB
}

var _ Sink = (*Database)(nil)

// NewDatabase opens dsn. A postgres:// or postgresql:// URL selects
// PostgreSQL; anything else is treated as a SQLite file path.
func NewDatabase(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("History database connected (PostgreSQL)")
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", dsn).Msg("History database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Execution{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Name() string { return "database" }

// Write inserts one execution row.
func (d *Database) Write(ctx context.Context, e Entry) error {
	steps, err := json.Marshal(e.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	row := Execution{
		Symbol:        e.Symbol,
		Action:        e.Action,
		OrderType:     e.OrderType,
		Direction:     e.Direction,
		Outcome:       e.Outcome,
		Error:         e.Error,
		ObservedPrice: decimal.NewFromFloat(e.ObservedPrice),
		Signal:        string(e.Signal),
		Steps:         string(steps),
		DurationMs:    e.Duration.Milliseconds(),
		ExecutedAt:    e.ExecutedAt,
	}
	return d.db.WithContext(ctx).Create(&row).Error
}

// Recent returns up to limit executions for symbol, newest first.
func (d *Database) Recent(symbol string, limit int) ([]Execution, error) {
	var rows []Execution
	err := d.db.Where("symbol = ?", symbol).
		Order("executed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountByOutcome returns how many executions ended with each outcome.
func (d *Database) CountByOutcome(symbol string) (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Count   int64
	}
	err := d.db.Model(&Execution{}).
		Select("outcome, count(*) as count").
		Where("symbol = ?", symbol).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Outcome] = r.Count
	}
	return out, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
