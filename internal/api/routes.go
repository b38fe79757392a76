package api

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ubuygold/keygate/internal/config"
	"github.com/ubuygold/keygate/internal/metrics"
)

const adminPage = "admin.html"

// NewRouter builds the engine with the standard middleware chain and all routes.
func NewRouter(svc KeyService, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(log))
	if cfg.Debug {
		router.Use(RequestLogger(log))
	}
	router.Use(cors.Default())

	SetupRoutes(router, svc, cfg, m, log)
	return router
}

func SetupRoutes(router *gin.Engine, svc KeyService, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) {
	handler := NewHandler(svc, log)

	router.GET("/healthz", handler.HealthHandler)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/check", handler.CheckHandler)

		keysGroup := apiGroup.Group("/keys")
		keysGroup.Use(AdminAuthMiddleware(cfg.Auth.Mode, cfg.Auth.Password))
		{
			keysGroup.POST("/list", handler.ListKeysHandler)
			keysGroup.POST("/add", handler.AddKeyHandler)
			keysGroup.POST("/delete", handler.DeleteKeyHandler)
			keysGroup.POST("/toggle", handler.ToggleKeyHandler)
		}
	}

	page := filepath.Join(cfg.Server.PublicDir, adminPage)
	if _, err := os.Stat(page); err == nil {
		router.StaticFile("/", page)
		router.StaticFile("/"+adminPage, page)
	} else {
		log.Warn("Admin page not found, static UI disabled", "path", page)
	}
}
