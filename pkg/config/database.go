package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"quantcontrol/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		getenv("DB_HOST", "localhost"),
		getenv("DB_USER", "quant_user"),
		os.Getenv("DB_PASSWORD"),
		getenv("DB_NAME", "trade_history"),
		getenv("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	// Auto migrate all models
	err = DB.AutoMigrate(
		&models.MarketData{},
		&models.TechnicalIndicator{},
		&models.SentimentScore{},
		&models.AIPrediction{},
		&models.Signal{},
		&models.ExecutedTrade{},
		&models.SystemLog{},
		&models.SystemConfig{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
