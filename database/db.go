package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentease/config"
)

var DB *gorm.DB

// NewGormLogger routes GORM's SQL logging through logrus
func NewGormLogger(log *logrus.Logger) logger.Interface {
	level := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open connects to the database selected by cfg.DBDriver
func Open(cfg config.Config, log *logrus.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         NewGormLogger(log),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

		log.WithFields(logrus.Fields{
			"host": cfg.DBHost,
			"port": cfg.DBPort,
			"db":   cfg.DBName,
		}).Info("Connecting to PostgreSQL")

		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return db, nil

	case "sqlite", "sqlite3":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("create sqlite folder: %w", err)
		}

		log.WithField("path", cfg.DBPath).Info("Opening SQLite database")

		db, err := gorm.Open(sqlite.Open(cfg.DBPath+"?_foreign_keys=on"), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows one writer at a time
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	return nil, fmt.Errorf("unsupported DB driver: %s", cfg.DBDriver)
}

// InitDB initializes the global connection from config.AppConfig
func InitDB(log *logrus.Logger) error {
	db, err := Open(config.AppConfig, log)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
