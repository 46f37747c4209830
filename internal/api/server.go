package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/romangod6/linkscout/internal/monitoring"
	"github.com/romangod6/linkscout/internal/scan"
	"github.com/romangod6/linkscout/internal/utils"
)

type ServerConfig struct {
	Port int
	// WriteTimeout must outlast the slowest scan you expect to serve.
	WriteTimeout time.Duration
	Defaults     scan.Defaults
}

type Server struct {
	router *gin.Engine
	config ServerConfig
	server *http.Server
}

func NewServer(config ServerConfig, scanner Scanner, logger *utils.Logger, metrics *monitoring.MetricsCollector) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Minute
	}

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(RecoveryMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.MetricsMiddleware())
	}

	// Setup CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	handler := NewHandler(scanner, config.Defaults)

	router.GET("/", handler.Index)
	if metrics != nil {
		router.GET("/metrics", metrics.Handler())
	}

	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		api.GET("/scan", handler.RunScan)
	}

	return &Server{
		router: router,
		config: config,
	}
}

// Router exposes the configured engine, e.g. for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
