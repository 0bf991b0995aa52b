package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/logger"
	"github.com/colloceo/colloceo-wifi-billing-system/internal/server"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println(".env file not found, relying on environment variables")
	}
	defer logger.Sync()

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
