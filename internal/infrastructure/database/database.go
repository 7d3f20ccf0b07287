// Package database owns the gorm connection and schema auto-migration.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
)

// SchemaRegistry collects every schema model registered for auto-migration.
var SchemaRegistry []interface{}

// RegisterSchemaForAutoMigrate adds models to the migration registry. Called
// from dbschema init functions.
func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Config holds database connection settings.
type Config struct {
	DatabaseURL string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// Connect opens a postgres connection and configures the pool.
func Connect(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("unable to connect to database")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	log := logger.GetLogger()
	log.Info().Msg("Successfully connected to database")
	return db, nil
}

// NewDB opens a connection with pool defaults.
func NewDB(dsn string) (*gorm.DB, error) {
	return Connect(Config{
		DatabaseURL: dsn,
		MaxIdle:     10,
		MaxOpen:     25,
		MaxLifetime: 1 * time.Hour,
		LogLevel:    gormlogger.Silent,
	})
}

// AutoMigrate creates and updates tables for every registered schema model.
func AutoMigrate(db *gorm.DB) error {
	log := logger.GetLogger()
	log.Info().Int("models", len(SchemaRegistry)).Msg("Running schema auto-migration")
	if err := db.AutoMigrate(SchemaRegistry...); err != nil {
		log.Error().Err(err).Msg("Failed to apply schema auto-migration")
		return err
	}
	log.Info().Msg("Schema auto-migration applied")
	return nil
}
