package handlers

import (
	"net/http"

	"quantcontrol/internal/models"
	dbconfig "quantcontrol/pkg/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

// ListSystemLogs returns recent system log rows, optionally filtered by
// service and level.
func ListSystemLogs(c *gin.Context) {
	query := dbconfig.DB.Model(&models.SystemLog{})
	if service := c.Query("service"); service != "" {
		query = query.Where("service = ?", service)
	}
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}

	var logs []models.SystemLog
	if err := query.Order("timestamp DESC").Limit(200).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetSystemConfig returns one runtime config key.
func GetSystemConfig(c *gin.Context) {
	var row models.SystemConfig
	if err := dbconfig.DB.First(&row, "key = ?", c.Param("key")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}

// SystemConfigRequest represents the request body for setting a config key.
type SystemConfigRequest struct {
	Value string `json:"value" binding:"required"`
}

// SetSystemConfig upserts a runtime config key. sleep_mode values are
// validated; other keys are free-form.
func SetSystemConfig(c *gin.Context) {
	key := c.Param("key")

	var req SystemConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if key == models.ConfigKeySleepMode {
		switch req.Value {
		case models.SleepModeAuto, models.SleepModeForceAwake, models.SleepModeForceSleep:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sleep_mode value"})
			return
		}
	}

	row := models.SystemConfig{Key: key, Value: req.Value}
	if err := dbconfig.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}
