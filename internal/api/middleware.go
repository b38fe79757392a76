package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ubuygold/keygate/internal/config"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// AdminAuthMiddleware checks the adminPassword body field in authenticated
// mode. In open mode every request passes.
func AdminAuthMiddleware(mode, adminPassword string) gin.HandlerFunc {
	if mode == config.AuthOpen {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		var req struct {
			AdminPassword string `json:"adminPassword"`
		}
		if !bindBody(c, &req) {
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.AdminPassword), []byte(adminPassword)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid admin password"})
			return
		}
		c.Next()
	}
}

// RequestID tags every request with an id, reusing the caller's X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// Recovery is a middleware that recovers from panics and handles http.ErrAbortHandler gracefully.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDKey),
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, serverError)
			}
		}()
		c.Next()
	}
}
