package db

import (
	"fmt"
	"log/slog"
	"time"

	"Gin_postgres_redis_tool_booking/config"
	"Gin_postgres_redis_tool_booking/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLiteDSN = "file:booking.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"

func ConnectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.URL
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(cfg.URL)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time; transactions serialize on the connection
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("database connected", "driver", cfg.Driver)
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.ToolCategory{},
		&models.Tool{},
		&models.Reservation{},
		&models.ActivityLog{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// Storage-level guards behind the per-tool row lock: no empty or inverted
	// windows, and no two overlapping [start,end) windows for one tool.
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		fmt.Sprintf(`DO $$ BEGIN
		  ALTER TABLE %s ADD CONSTRAINT %s_window_ordered CHECK (start_time < end_time);
		EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL; END $$`, models.ReservationTable, models.ReservationTable),
		fmt.Sprintf(`DO $$ BEGIN
		  ALTER TABLE %s ADD CONSTRAINT %s_no_overlap
		    EXCLUDE USING gist (tool_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&);
		EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL; END $$`, models.ReservationTable, models.ReservationTable),
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}
