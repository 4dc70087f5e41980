package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datalens/ai"
	"datalens/cache"
	"datalens/classify"
	"datalens/config"
	"datalens/db"
	"datalens/handlers"
	"datalens/sessions"
)

func main() {
	cfg := config.Load()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	gin.SetMode(cfg.GinMode)

	// Chat history lives in an embedded store, independent of the
	// caller-supplied relational connections.
	history, err := db.NewHistoryStore(cfg.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize history store: %v", err)
	}
	defer history.Close()

	appCache := cache.New()
	aiService := ai.New(cfg.CompletionAPIKey, cfg.ModelName, cfg.CompletionURL, appCache)
	gate := classify.NewGate(aiService)
	sessionStore := sessions.NewStore()

	h := handlers.New(history, aiService, gate, sessionStore)

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Session-ID", "Authorization")
	r.Use(cors.New(corsConfig))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Routes
	r.GET("/health", h.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/query", h.QueryHandler)
	r.GET("/api/history/:session", h.HistoryHandler)

	log.Infof("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
