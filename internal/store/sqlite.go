package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// tableRow holds one logical row of one logical table; cells are stored as a
// JSON array so any schema fits the same physical table.
type tableRow struct {
	ID       uint   `gorm:"primaryKey"`
	Table    string `gorm:"column:table_name;index:idx_table_row,unique,priority:1"`
	RowIndex int    `gorm:"index:idx_table_row,unique,priority:2"`
	Cells    string
}

func (tableRow) TableName() string { return "table_rows" }

// SQLite is a TabularStore on a local SQLite file, used for development runs
// and anywhere a remote spreadsheet is overkill. Conditional appends run in
// a transaction, so dedup-on-create is genuinely atomic here.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (creating if needed) the database at dsn and migrates the
// row table.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = "listkeeper.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&tableRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) CreateTable(ctx context.Context, table string) error {
	// Tables exist implicitly; an empty table and a missing table read the
	// same way.
	return nil
}

func (s *SQLite) GetRows(ctx context.Context, table string) ([][]string, error) {
	var records []tableRow
	if err := s.db.WithContext(ctx).
		Where("table_name = ?", table).
		Order("row_index").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get rows of %q: %w", table, err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row, err := decodeCells(rec.Cells)
		if err != nil {
			return nil, fmt.Errorf("row %d of %q: %w", rec.RowIndex, table, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *SQLite) AppendRows(ctx context.Context, table string, rows [][]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendTx(tx, table, rows)
	})
}

func (s *SQLite) AppendRowsIfAbsent(ctx context.Context, table string, rows [][]string, keyCol int) (AppendResult, error) {
	if len(rows) == 0 {
		return AppendResult{}, nil
	}
	key := cellAt(rows[0], keyCol)

	var result AppendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []tableRow
		if err := tx.Where("table_name = ? AND row_index > 0", table).Find(&records).Error; err != nil {
			return err
		}
		for _, rec := range records {
			row, err := decodeCells(rec.Cells)
			if err != nil {
				return err
			}
			if cellAt(row, keyCol) == key {
				result = AppendResult{Duplicate: true}
				return nil
			}
		}
		if err := appendTx(tx, table, rows); err != nil {
			return err
		}
		result = AppendResult{Appended: true}
		return nil
	})
	if err != nil {
		return AppendResult{}, fmt.Errorf("conditional append to %q: %w", table, err)
	}
	return result, nil
}

func (s *SQLite) UpdateRange(ctx context.Context, table string, startRow int, rows [][]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			cells, err := encodeCells(row)
			if err != nil {
				return err
			}
			idx := startRow + i
			var existing tableRow
			err = tx.Where("table_name = ? AND row_index = ?", table, idx).First(&existing).Error
			switch {
			case err == nil:
				existing.Cells = cells
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("update row %d of %q: %w", idx, table, err)
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				rec := tableRow{Table: table, RowIndex: idx, Cells: cells}
				if err := tx.Create(&rec).Error; err != nil {
					return fmt.Errorf("insert row %d of %q: %w", idx, table, err)
				}
			default:
				return err
			}
		}
		return nil
	})
}

func appendTx(tx *gorm.DB, table string, rows [][]string) error {
	var next int
	row := tx.Model(&tableRow{}).
		Where("table_name = ?", table).
		Select("COALESCE(MAX(row_index), -1) + 1")
	if err := row.Scan(&next).Error; err != nil {
		return fmt.Errorf("next row index of %q: %w", table, err)
	}
	for i, cells := range rows {
		encoded, err := encodeCells(cells)
		if err != nil {
			return err
		}
		rec := tableRow{Table: table, RowIndex: next + i, Cells: encoded}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("append row to %q: %w", table, err)
		}
	}
	return nil
}

func encodeCells(cells []string) (string, error) {
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(data), nil
}

func decodeCells(data string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(data), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}

// ensureDirForSQLite creates the parent dir for the database file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
