package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stocksync/internal/api/handlers"
	"stocksync/internal/api/middleware"
	"stocksync/internal/config"
	"stocksync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	DB     *gorm.DB
	Sync   handlers.SyncRunner
	Runs   handlers.RunStore
	OAuth  handlers.OAuthFlow
	Tokens handlers.TokenStore
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(deps.Sync, deps.Runs, logger)
	connectorHandler := handlers.NewConnectorHandler(deps.DB, logger)
	shopifyHandler := handlers.NewShopifyHandler(deps.OAuth, deps.Tokens, logger)

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy"}
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			body = gin.H{"status": "unhealthy", "database": "unreachable"}
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Sync runs
		sync := v1.Group("/sync")
		{
			sync.POST("/:tenant", syncHandler.Trigger)
			sync.GET("/:tenant/runs", syncHandler.ListRuns)
		}
		v1.GET("/runs/:id", syncHandler.GetRun)

		// Connectors
		connectors := v1.Group("/connectors")
		{
			connectors.GET("", connectorHandler.List)
			connectors.GET("/:id", connectorHandler.Get)
			connectors.POST("", connectorHandler.Create)
			connectors.PUT("/:id", connectorHandler.Update)
			connectors.DELETE("/:id", connectorHandler.Delete)
		}

		// Shopify Integration
		shopify := v1.Group("/shopify")
		{
			shopify.POST("/install", shopifyHandler.Install)
			shopify.GET("/callback", shopifyHandler.Callback)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	// A sync request is answered once the run finishes, which the tenant
	// lock bounds.
	writeTimeout := s.config.Sync.LockTTL
	if writeTimeout < 15*time.Second {
		writeTimeout = 15 * time.Second
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
