package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Kosench/go-link-shortener/internal/cache"
	"github.com/gin-gonic/gin"
)

const (
	ServiceName    = "Link Shortener"
	ServiceVersion = "1.0.0"
	healthTimeout  = 3 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemInfo описывает окружение для /info
type SystemInfo struct {
	DatabaseDriver  string
	DatabaseVersion func(ctx context.Context) (string, error)
	ClickMode       string
}

type SystemHandler struct {
	store Pinger
	cache cache.Cache // nil если Redis выключен
	info  SystemInfo
}

func NewSystemHandler(store Pinger, c cache.Cache, info SystemInfo) *SystemHandler {
	return &SystemHandler{
		store: store,
		cache: c,
		info:  info,
	}
}

// Healthz - проверка живости с фиксированным ответом
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": "1.0"})
}

func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := "healthy"
	services := gin.H{}

	if err := h.store.Ping(ctx); err != nil {
		services["database"] = "unhealthy"
		status = "degraded"
	} else {
		services["database"] = "healthy"
	}

	switch {
	case h.cache == nil:
		services["cache"] = "disabled"
	case h.cache.HealthCheck(ctx) != nil:
		services["cache"] = "unhealthy"
		status = "degraded"
	default:
		services["cache"] = "healthy"
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":   status,
		"services": services,
	})
}

func (h *SystemHandler) Info(c *gin.Context) {
	info := gin.H{
		"service":         ServiceName,
		"version":         ServiceVersion,
		"database_driver": h.info.DatabaseDriver,
		"cache_enabled":   h.cache != nil,
		"click_mode":      h.info.ClickMode,
	}

	if h.info.DatabaseVersion != nil {
		if version, err := h.info.DatabaseVersion(c.Request.Context()); err == nil {
			info["database_version"] = version
		}
	}

	if h.cache != nil {
		info["cache_driver"] = "redis"
	}

	c.JSON(http.StatusOK, info)
}
