package middleware

import (
	"net/http"
	"runtime/debug" // stack of the panicking goroutine

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware recovers from panics in downstream handlers, logs them
// with a stack trace and answers with a generic 500 so the server keeps running.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RecoveryMiddleware requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path), // request context for the log line
					zap.String("method", c.Request.Method),
				)

				// Only answer if the handler had not written yet.
				// This check prevents "multiple response.WriteHeader calls" errors.
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
				}

				// Stop the remaining handlers in the chain.
				c.Abort()
			}
		}()

		// A panic anywhere below is caught by the deferred func above.
		c.Next()
	}
}
