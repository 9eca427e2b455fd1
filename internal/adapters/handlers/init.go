package handlers

import (
	"net/http"

	"github.com/iwtcode/abbAdapter/internal/config"
	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Handler - структура для обработчиков HTTP-запросов
type Handler struct {
	source   interfaces.StatusSource
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(source interfaces.StatusSource, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	return &Handler{
		source:   source,
		gatherer: gatherer,
		logger:   logger.WithPrefix("HANDLER"),
	}
}

// ProvideRouter настраивает и возвращает HTTP-роутер
func ProvideRouter(h *Handler, cfg *config.AppConfig) http.Handler {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// Logger Middleware
	router.Use(LoggingMiddleware(h.logger, cfg.MetricsPath))

	router.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	// Группа API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", h.GetState)
		v1.GET("/description", h.GetDescription)
		v1.GET("/joints", h.GetJoints)
		v1.GET("/joints/:name", h.GetJoint)
	}

	return router
}
