package main

import (
	"context"
	"log"

	"gobiodiv/internal/config"
	"gobiodiv/internal/container"
	"gobiodiv/ui"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Database.Enabled() {
		log.Fatal("The report browser reads stored runs and needs DATABASE_URL")
	}

	c, err := container.Bootstrap(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer c.Shutdown(context.Background())

	app, err := ui.NewApp(c.ResultRepo)
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}

	log.Fatal(app.Start(cfg.UI.Port))
}
