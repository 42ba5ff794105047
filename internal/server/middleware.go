package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

const HeaderRequestID = "X-Request-ID"

// Context keys set by handlers and consumed by the access log.
const (
	ctxRequestID     = "request_id"
	ctxKind          = "kind"
	ctxOCID          = "ocid"
	ctxCharacterName = "character_name"
	ctxCacheOutcome  = "cache_outcome"
)

// RequestID assigns each request a correlation id, honoring one supplied by
// the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog emits one structured record per request.
func (s *Server) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		event := s.logger.Info()
		if len(c.Errors) > 0 {
			event = s.logger.Warn().
				Str("error_kind", string(apierr.KindOf(c.Errors.Last().Err)))
		}

		event.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Int64("elapsed_ms", time.Since(startTime).Milliseconds())

		addIfSet(event, c, ctxKind)
		addIfSet(event, c, ctxOCID)
		addIfSet(event, c, ctxCharacterName)
		addIfSet(event, c, ctxCacheOutcome)

		event.Msg("Request served")
	}
}

func addIfSet(event *zerolog.Event, c *gin.Context, key string) {
	if v := c.GetString(key); v != "" {
		event.Str(key, v)
	}
}
