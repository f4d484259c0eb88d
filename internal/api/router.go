package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
)

// JobReader is the read side of the job store used by the API.
type JobReader interface {
	List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error)
	GetByID(ctx context.Context, id int64) (*jobs.Job, error)
	CountByStatus(ctx context.Context) (map[jobs.Status]int, error)
}

// Controller schedules pipeline work on behalf of API requests.
type Controller interface {
	Trigger(ctx context.Context) bool
	RetryAsync(ctx context.Context, id int64) error
	Running() bool
	LastError() string
}

// Dependencies are the collaborators the router needs.
type Dependencies struct {
	Jobs     JobReader
	Pipeline Controller
	Logger   *slog.Logger
	Token    string
}

// NewRouter builds the gin engine serving the job API.
func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "api")
	h := &handler{jobs: deps.Jobs, pipeline: deps.Pipeline, logger: logger}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})

	r.GET("/health", h.health)

	authed := r.Group("/")
	authed.Use(bearerAuth(deps.Token))
	authed.GET("/status", h.status)
	authed.GET("/jobs", h.listJobs)
	authed.GET("/jobs/:id", h.getJob)
	authed.POST("/jobs/:id/retry", h.retryJob)
	authed.POST("/trigger", h.trigger)
	return r
}

// requestLogger logs each request at debug; server errors at warn.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, logging.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("api request failed", attrs...)
			return
		}
		logger.Debug("api request", attrs...)
	}
}

// bearerAuth validates "Authorization: Bearer <token>". An empty token
// disables authentication.
func bearerAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		given, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
