package handlers

import (
	"net/http"
	"strconv"

	"quantcontrol/internal/models"
	dbconfig "quantcontrol/pkg/config"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 50

// ListSignals returns signals newest first, optionally filtered by symbol
// and/or status, with pagination.
func ListSignals(c *gin.Context) {
	query := dbconfig.DB.Model(&models.Signal{})

	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > 500 {
		pageSize = defaultPageSize
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var signals []models.Signal
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&signals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      signals,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetSignal returns a specific signal by ID
func GetSignal(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var signal models.Signal
	if err := dbconfig.DB.First(&signal, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, signal)
}

// ListExecutedTrades returns the executed trades audit trail, newest first.
func ListExecutedTrades(c *gin.Context) {
	query := dbconfig.DB.Model(&models.ExecutedTrade{})
	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var trades []models.ExecutedTrade
	if err := query.Order("timestamp DESC").Limit(200).Find(&trades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}
