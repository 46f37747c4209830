package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romangod6/linkscout/config"
	"github.com/romangod6/linkscout/internal/api"
	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/monitoring"
	"github.com/romangod6/linkscout/internal/scan"
	"github.com/romangod6/linkscout/internal/utils"
)

const serviceName = "linkscout"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(serviceName, cfg.LoggerOptions())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	metrics := monitoring.NewMetricsCollector(serviceName)

	collector := crawler.NewCollector(cfg.CrawlerConfig())
	scanner := scan.NewScanner(collector, scan.Config{
		Sitemap: cfg.SitemapLimits(),
		Logger:  logger,
		Metrics: metrics,
	})

	server := api.NewServer(api.ServerConfig{
		Port:         cfg.Server.Port,
		WriteTimeout: cfg.GetWriteTimeout(),
		Defaults:     cfg.ScanDefaults(),
	}, scanner, logger, metrics)

	// Start the API server
	go func() {
		logger.Infof("Starting API server on port %d", cfg.Server.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start API server: %v", err)
		}
	}()

	// Wait for shutdown
	waitForShutdown(server, logger)
}

func waitForShutdown(server *api.Server, logger *utils.Logger) {
	// Handle system signals for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down...")

	// Graceful server shutdown
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
	logger.Info("Server shut down gracefully")
}
