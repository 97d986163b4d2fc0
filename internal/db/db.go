// Package db opens the sqlite database, migrates the schema and seeds the
// vendor-prefix reference data.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"topomap/internal/models"
	"topomap/internal/store"
)

// Init opens the database at path and migrates every entity table. The
// sentinel "unknown vendor" Oui row is a startup precondition: Init fails if
// it cannot be created.
func Init(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	err = gdb.AutoMigrate(
		&models.Device{},
		&models.L1Interface{},
		&models.Vlan{},
		&models.VlanPort{},
		&models.Oui{},
		&models.Mac{},
		&models.MacPort{},
		&models.MacIP{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	sentinel := models.Oui{ID: models.UnknownOuiID, Prefix: "unknown", Vendor: "unknown"}
	if err := gdb.FirstOrCreate(&sentinel, models.Oui{ID: models.UnknownOuiID}).Error; err != nil {
		return nil, fmt.Errorf("seed sentinel oui row: %w", err)
	}

	return gdb, nil
}

// SeedVendors loads a JSON file mapping vendor prefixes to vendor names into
// the Oui table, ignoring prefixes already present.
func SeedVendors(ctx context.Context, s store.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read vendor file %q: %w", path, err)
	}

	var vendors map[string]string
	if err := json.Unmarshal(data, &vendors); err != nil {
		return 0, fmt.Errorf("parse vendor file %q: %w", path, err)
	}

	prefixes := make([]string, 0, len(vendors))
	for prefix := range vendors {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	rows := make([]models.Oui, 0, len(prefixes))
	for _, prefix := range prefixes {
		rows = append(rows, models.Oui{Prefix: prefix, Vendor: vendors[prefix]})
	}
	if err := s.InsertOuis(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
