package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"form-relay/pkg/middleware"
)

// NewRouter builds the engine with the request log, CORS and every route registered
func NewRouter(h *Handlers, allowedOrigins []string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(allowedOrigins))
	RegisterRoutes(router, h)
	return router
}

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/form-submission", h.HandleFormSubmission)
	}

	r.NoRoute(h.NotFound)
}
