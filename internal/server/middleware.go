package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxRequestSize bounds login request bodies (1MB)
const maxRequestSize = 1 << 20

// headersMiddleware adds security headers to all responses. The adapter only
// serves JSON, so nothing may be framed or run as a document.
func headersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// requestSizeMiddleware limits request body size
func requestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
