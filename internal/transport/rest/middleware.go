package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/transport/errmap"
)

const (
	requestIDKey    = "request_id"
	actorKey        = "actor"
	requestIDMaxLen = 64
)

// RequestID reuses a caller supplied X-Request-ID when it is short enough
// and generates one otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("client error", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// Auth resolves the bearer token into an actor and stores it on both the
// gin and the request context.
func Auth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := v.FromBearer(c.GetHeader("Authorization"))
		if err != nil {
			cls := errmap.Classify(err)
			Error(c, cls.HTTPStatus, cls.Code, cls.Message)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// mustActor writes a 401 and reports false when no actor was resolved.
func mustActor(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		Unauthorized(c, "unauthenticated")
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	if !ok || !actor.Valid() {
		Unauthorized(c, "unauthenticated")
		return domain.Actor{}, false
	}
	return actor, true
}
