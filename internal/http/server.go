// README: Operational status endpoint for the bot process.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"traveladvisor/internal/modules/advisor"
)

type ServerDeps struct {
	Store     *advisor.Store
	StartedAt time.Time
}

type Server struct {
	store     *advisor.Store
	startedAt time.Time
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		store:     deps.Store,
		startedAt: deps.StartedAt,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_sessions": s.store.Len(),
			"uptime_seconds":  int(time.Since(s.startedAt).Seconds()),
		})
	})

	return r
}
