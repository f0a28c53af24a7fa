package handler

import (
	"net/http"
	"time"

	"github.com/Kosench/go-link-shortener/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Links          *LinkHandler
	System         *SystemHandler
	Logger         *zap.Logger
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(cfg.Logger))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health checks
	router.GET("/healthz", cfg.System.Healthz)
	router.GET("/health", cfg.System.Health)
	router.GET("/info", cfg.System.Info)

	// API routes
	api := router.Group("/api")
	{
		api.POST("/links", cfg.Links.CreateLink)
		api.GET("/links", cfg.Links.ListLinks)
		api.GET("/links/:code", cfg.Links.GetLink)
		api.DELETE("/links/:code", cfg.Links.DeleteLink)
	}

	router.GET("/:code", cfg.Links.Redirect)

	return router
}
