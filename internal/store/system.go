package store

import (
	"errors"

	"quantcontrol/internal/models"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogEvent mirrors a significant event into the system_logs table for the
// operator surface. Failures here must never break a pipeline stage, so they
// are logged and swallowed.
func (s *Store) LogEvent(service, level, message string) {
	rec := models.SystemLog{
		Service: service,
		Level:   level,
		Message: message,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		logger.Warnf("Failed to write system log (%s/%s): %v", service, level, err)
	}
}

// GetConfigValue reads a runtime config key, returning fallback when the key
// is absent or the store is unreachable. Callers poll this each cycle, so a
// silent fallback beats failing the stage.
func (s *Store) GetConfigValue(key, fallback string) string {
	var row models.SystemConfig
	err := s.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback
	}
	if err != nil {
		return fallback
	}
	return row.Value
}

// SetConfigValue upserts a runtime config key.
func (s *Store) SetConfigValue(key, value string) error {
	return s.withRetry("set_config_value", func() error {
		return s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&models.SystemConfig{Key: key, Value: value}).Error
	})
}
