package server

import (
	"github.com/gin-gonic/gin"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

// ErrorHandler turns the last recorded error into the error envelope. It
// runs after the handler chain; handlers record errors via AbortWithError
// and never write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		e := apierr.From(lastErr.Err)
		c.AbortWithStatusJSON(e.Status, e.Envelope())
	}
}

// AbortWithError records err on the context and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
