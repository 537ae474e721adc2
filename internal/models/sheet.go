package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SheetTable is a named table of the local sheet store.
// Version changes on every write and backs the optimistic concurrency check.
type SheetTable struct {
	gorm.Model
	Name    string         `gorm:"uniqueIndex;not null"`
	Columns datatypes.JSON `gorm:"not null"`
	Version string         `gorm:"not null"`
}

// SheetRow is one row of a SheetTable, ordered by Position.
type SheetRow struct {
	ID       uint           `gorm:"primaryKey"`
	TableID  uint           `gorm:"index:idx_table_position,unique;not null"`
	Position int            `gorm:"index:idx_table_position,unique;not null"`
	Cells    datatypes.JSON `gorm:"not null"`
}
