package database

import (
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"orderexecutor/src/model"
)

// JournalDB is the journal connection, nil when the journal is disabled.
var JournalDB *gorm.DB

// InitJournalDB opens the execution journal when enabled and migrates its
// schema. Returns (false, nil) when the journal is disabled.
func InitJournalDB() (bool, error) {
	config := GetConfig()
	if !config.EnableJournal {
		logger.Debug("Execution journal disabled")
		return false, nil
	}

	dialector := openDialector(config.JournalDSN)

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return false, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false, err
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if err := db.AutoMigrate(&model.ExecutionLog{}); err != nil {
		return false, err
	}

	JournalDB = db
	logger.WithField("dsn", config.JournalDSN).Info("Execution journal initialized")
	return true, nil
}

func openDialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}
