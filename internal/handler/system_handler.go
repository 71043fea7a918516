package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/response"
	"github.com/stemsi/quizlock/internal/service"
)

const probeTimeout = 2 * time.Second

// SystemHandler reports liveness and the state of optional dependencies.
type SystemHandler struct {
	sessions  *service.SessionService
	rdb       *redis.Client
	pool      *pgxpool.Pool
	generator bool
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. rdb and pool may be nil.
func NewSystemHandler(sessions *service.SessionService, rdb *redis.Client, pool *pgxpool.Pool, generator bool, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		sessions:  sessions,
		rdb:       rdb,
		pool:      pool,
		generator: generator,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	ActiveSessions int               `json:"active_sessions"`
	Goroutines     int               `json:"goroutines"`
	GoVersion      string            `json:"go_version"`
	Generator      string            `json:"generator"`
	Dependencies   map[string]string `json:"dependencies"`
}

// Health godoc
// GET /health
// Always 200 while the process serves requests; degraded dependencies are
// reported in the body because gameplay works without them.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	status := healthStatus{
		Status:         "ok",
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		ActiveSessions: h.sessions.Count(),
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
		Generator:      "fallback_only",
		Dependencies:   map[string]string{},
	}
	if h.generator {
		status.Generator = "remote"
	}

	if h.rdb != nil {
		status.Dependencies["redis"] = probe(h.rdb.Ping(ctx).Err())
	}
	if h.pool != nil {
		status.Dependencies["postgres"] = probe(h.pool.Ping(ctx))
	}
	for name, state := range status.Dependencies {
		if state != "up" {
			status.Status = "degraded"
			h.log.Warn().Str("dependency", name).Msg("Dependency unhealthy")
		}
	}

	response.Success(c, http.StatusOK, status)
}

func probe(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
