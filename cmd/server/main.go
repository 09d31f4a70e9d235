package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tripsplit/tripsplit-server/internal/api"
	"github.com/tripsplit/tripsplit-server/internal/config"
	"github.com/tripsplit/tripsplit-server/internal/exchange"
	"github.com/tripsplit/tripsplit-server/internal/repository"
	"github.com/tripsplit/tripsplit-server/internal/service"
	"github.com/tripsplit/tripsplit-server/internal/utils"
)

func main() {
	// Load .env if present, then configuration from the environment
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	logger := utils.NewLogger()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Error("failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Currency conversion with optional fetch-on-miss from the rate source
	var fetcher exchange.Fetcher
	if cfg.RateSource.URL != "" {
		fetcher = exchange.NewHTTPFetcher(cfg.RateSource.URL, cfg.RateSource.FetchTimeout)
	}
	converter := exchange.NewConverter(repo, fetcher, cfg.Settlement.BaseCurrency, cfg.RateSource.FetchTimeout)

	// Daily rate refresh for the configured currencies
	if fetcher != nil && len(cfg.RateSource.Currencies) > 0 {
		refresher := exchange.StartRateRefresh(converter, fetcher, cfg.RateSource.Currencies, logger)
		defer refresher.Stop()
	}

	// Create service
	svc := service.NewDefaultService(repo, converter, logger, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()
	router.Use(api.MetricsMiddleware())

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", "addr", serverAddr, "base_currency", cfg.Settlement.BaseCurrency)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
