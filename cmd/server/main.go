package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	approuters "Helpdesk/internal/app_routers"
	"Helpdesk/internal/configuration"
)

func main() {
	// .env is optional; environment variables override the config file.
	_ = godotenv.Load()

	configPath := os.Getenv("HELPDESK_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}

	container, err := configuration.BuildContainer(configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
