package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sokoni/server/internal/model"
	"go.uber.org/zap"
)

// Recovery returns a middleware that turns panics into a 500 response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
					Code:    "internal_error",
					Message: "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
