package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// ExecutionLogRepository handles read/write operations for execution logs.
type ExecutionLogRepository struct {
	db *gorm.DB
}

// NewExecutionLogRepository creates a repository backed by the journal DB.
func NewExecutionLogRepository() *ExecutionLogRepository {
	return &ExecutionLogRepository{db: database.JournalDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ExecutionLogRepository) WithDB(db *gorm.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Create inserts a new execution log row.
func (r *ExecutionLogRepository) Create(ctx context.Context, entry *model.ExecutionLog) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "ExecutionLogRepository",
		"op":       "Create",
		"strategy": entry.Strategy,
		"symbol":   entry.Symbol,
		"status":   entry.Status,
	}).Debug("Recording execution log")

	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionLogRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to record execution log")

		return err
	}

	return nil
}

// FindBySymbol returns the most recent execution logs for a symbol, newest first.
func (r *ExecutionLogRepository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]model.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []model.ExecutionLog
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ExecutionLogRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to query execution logs")

		return nil, err
	}

	return entries, nil
}
