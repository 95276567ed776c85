package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/promoreel/promoreel/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect picks the gorm driver for the configured database. The ledger's
// idempotent inserts use ON CONFLICT with a partial unique index, so only
// postgres (and the sqlite test build) are supported.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case "sqlite":
		dsn := cfg.DBName
		if dsn == "" {
			dsn = "promoreel.db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
