// pkg/db/repository.go
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenLocal opens the on-device sqlite store and migrates the local tables.
func OpenLocal(path string) (*gorm.DB, error) {
	return OpenSQLite(path, Models()...)
}

// OpenSQLite opens a sqlite database and migrates the given models.
func OpenSQLite(path string, models ...any) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: configuredLogger()})
	if err != nil {
		logger.Error("failed to open sqlite database", "path", path, "error", err)
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			logger.Error("failed to auto-migrate sqlite database", "error", err)
			return nil, err
		}
	}
	return gdb, nil
}

// OpenPostgres connects to the shared database and migrates the given models.
func OpenPostgres(cfg config.DatabaseConfig, models ...any) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: configuredLogger()})
	if err != nil {
		logger.Error("failed to connect to database", "host", cfg.Host, "error", err)
		return nil, err
	}
	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			logger.Error("failed to auto-migrate database", "error", err)
			return nil, err
		}
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func configuredLogger() gormlogger.Interface {
	gormLogger, err := newGormLogger(config.AppConfig.Logging.GormLevel, config.AppConfig.Logging.SlowQuery)
	if err != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", err)
	}
	return gormLogger
}
