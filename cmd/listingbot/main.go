package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/dailyinfluencing/listingbot/bot/app"
	corecmd "github.com/dailyinfluencing/listingbot/core/cmd"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	if err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		log.Fatalf("listingbot: %v", err)
	}
}
