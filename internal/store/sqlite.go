package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"trade-recorder/internal/metrics"
	"trade-recorder/internal/models"
)

const rowBatchSize = 500

// SQLiteStore is a TableStore that keeps sheet-like tables in a local
// SQLite database. It mirrors the gateway semantics, including version checks.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ TableStore = (*SQLiteStore)(nil)

// NewSQLiteStore wraps a database migrated by database.NewDatabase.
func NewSQLiteStore(db *gorm.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger.Named("sqlite-store")}
}

func (s *SQLiteStore) Read(ctx context.Context, table string, columns []string) (result *Table, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("sqlite", "read", start, err) }()

	var sheet models.SheetTable
	err = s.db.WithContext(ctx).Where("name = ?", table).First(&sheet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("read %s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	tbl := &Table{Version: sheet.Version}
	if err = json.Unmarshal(sheet.Columns, &tbl.Columns); err != nil {
		return nil, fmt.Errorf("read %s: decode columns: %w", table, err)
	}

	var rows []models.SheetRow
	if err = s.db.WithContext(ctx).Where("table_id = ?", sheet.ID).Order("position asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s rows: %w", table, err)
	}
	tbl.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		var cells []string
		if err = json.Unmarshal(row.Cells, &cells); err != nil {
			return nil, fmt.Errorf("read %s: decode row %d: %w", table, row.Position, err)
		}
		tbl.Rows = append(tbl.Rows, cells)
	}

	return tbl.Project(columns)
}

func (s *SQLiteStore) Write(ctx context.Context, table string, t *Table) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("sqlite", "write", start, err) }()

	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("write %s: encode columns: %w", table, err)
	}
	newVersion := uuid.NewString()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet models.SheetTable
		findErr := tx.Where("name = ?", table).First(&sheet).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if t.Version != "" {
				return ErrVersionConflict
			}
			sheet = models.SheetTable{Name: table, Columns: columns, Version: newVersion}
			if err := tx.Create(&sheet).Error; err != nil {
				return fmt.Errorf("create table: %w", err)
			}
		case findErr != nil:
			return findErr
		default:
			if sheet.Version != t.Version {
				return ErrVersionConflict
			}
			if err := tx.Model(&sheet).Updates(map[string]interface{}{
				"columns": columns,
				"version": newVersion,
			}).Error; err != nil {
				return fmt.Errorf("update table: %w", err)
			}
			if err := tx.Where("table_id = ?", sheet.ID).Delete(&models.SheetRow{}).Error; err != nil {
				return fmt.Errorf("clear rows: %w", err)
			}
		}

		if len(t.Rows) == 0 {
			return nil
		}
		rows := make([]models.SheetRow, 0, len(t.Rows))
		for i, cells := range t.Rows {
			encoded, err := json.Marshal(cells)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
			rows = append(rows, models.SheetRow{TableID: sheet.ID, Position: i, Cells: encoded})
		}
		return tx.CreateInBatches(&rows, rowBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}

	t.Version = newVersion
	s.logger.Debug("Table written",
		zap.String("table", table),
		zap.Int("rows", len(t.Rows)),
		zap.String("version", newVersion),
	)
	return nil
}
