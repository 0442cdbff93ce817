package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"gobiodiv/internal/api"
	"gobiodiv/internal/config"
	"gobiodiv/internal/container"
	"gobiodiv/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.Bootstrap(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	uiApp, err := ui.NewApp(appContainer.ResultRepo)
	if err != nil {
		log.Fatalf("Failed to initialize report UI: %v", err)
	}

	servers := []*http.Server{
		{
			Addr:    ":" + appConfig.Server.Port,
			Handler: api.NewRouter(appContainer.AnalysisHandler(), appContainer.SSEHub, appContainer.Registry),
		},
		{
			Addr:    ":" + appConfig.UI.Port,
			Handler: uiApp.Handler(),
		},
	}

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("Performance profiling server starting on :%s", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("pprof server failed: %v", err)
			}
		}()
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Printf("Starting gobiodiv server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server on %s failed: %v", srv.Addr, err)
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appContainer.SSEHub.Stop()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown of %s failed: %v", srv.Addr, err)
		}
	}
}
