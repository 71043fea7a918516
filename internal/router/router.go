package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/handler"
	"github.com/stemsi/quizlock/internal/middleware"
	"github.com/stemsi/quizlock/internal/response"
	"github.com/stemsi/quizlock/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Game     *handler.GameHandler
	Operator *handler.OperatorHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	operatorService *service.OperatorService,
	startLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Compress())

	router.GET("/health", handlers.System.Health)

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── 1. Game Sessions (Public) ─────────────────────────────────────
	sessions := router.Group("/api/v1/sessions", middleware.NoStore())
	{
		sessions.POST("", handlers.Game.CreateSession)
		sessions.GET("/:id", handlers.Game.GetSession)
		sessions.DELETE("/:id", handlers.Game.DeleteSession)

		// Every start may cost a remote generation call.
		sessions.POST("/:id/start", startLimiter.Middleware(), handlers.Game.Start)
		sessions.POST("/:id/answer", handlers.Game.Answer)
		sessions.POST("/:id/retry", handlers.Game.Retry)
		sessions.POST("/:id/reset", handlers.Game.Reset)

		// Privileged override.
		sessions.POST("/:id/skip", middleware.RequireOperatorJWT(operatorService), handlers.Game.Skip)
	}

	// ─── 2. Operator ───────────────────────────────────────────────────
	operator := router.Group("/api/v1/operator", middleware.NoStore())
	{
		operator.POST("/token", handlers.Operator.IssueToken)
		operator.GET("/acquisitions", middleware.RequireOperatorJWT(operatorService), handlers.Operator.ListAcquisitions)
	}

	// ─── 3. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}
