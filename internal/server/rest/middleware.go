package rest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	userIDKey       = "userID"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs one line per request and records request metrics. Request
// bodies are never logged.
func accessLog(log logging.Logger, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDHeader),
		)

		if m != nil {
			code := strconv.Itoa(status)
			m.requests.WithLabelValues(c.Request.Method, path, code).Inc()
			m.durations.WithLabelValues(c.Request.Method, path, code).Observe(latency.Seconds())
		}
	}
}

func recovery(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				log.Error(c.Request.Context(), "panic",
					"error", p,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDHeader),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
			}
		}()
		c.Next()
	}
}

// requireAccessToken accepts "Authorization: Bearer <access token>" and
// stores the subject under userIDKey.
func requireAccessToken(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		raw, ok := strings.CutPrefix(header, common.BearerScheme)
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(c, common.ErrInvalidToken)
			return
		}

		claims, err := tokens.ParseAccess(strings.TrimSpace(raw))
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(userIDKey, claims.UserID())
		c.Next()
	}
}
