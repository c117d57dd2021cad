package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request.id"
	requestIDHeader = "X-Request-Id"
)

// GetRequestID returns the correlation id assigned to the request.
func GetRequestID(c *gin.Context) string {
	requestID, ok := c.Get(requestIDKey)
	if ok {
		return requestID.(string)
	}
	return c.Request.Header.Get(requestIDHeader)
}

func NewRequestIDMiddleware() gin.HandlerFunc {
	return requestIDMiddleware{}.build()
}

type requestIDMiddleware struct {
}

func (r requestIDMiddleware) build() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}
