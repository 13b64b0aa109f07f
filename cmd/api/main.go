package main

import (
	"log"
	"os"

	"quantcontrol/internal/routes"
	"quantcontrol/pkg/config"
)

func main() {
	// Initialize database
	config.InitDB()
	config.ExecuteMigrations()

	// Set up router
	r := routes.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
