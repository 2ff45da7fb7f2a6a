package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

type Config struct {
	Driver string
	DSN    string
	Logger gormlogger.Interface
}

// Open connects to postgres, or to sqlite for local runs and tests.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gcfg := &gorm.Config{TranslateError: true}
	if cfg.Logger != nil {
		gcfg.Logger = cfg.Logger
	} else {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One writer; transactions must not interleave on a shared cache.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table the billing core owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&users.User{},
		&credits.LedgerEntry{},
		&billing.EventLog{},
		&billing.PendingBillingIntent{},
		&billing.SubscriptionCancellation{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
