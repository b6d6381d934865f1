package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"school-manager/tenant"
)

// Logger 自定义日志中间件，带上当前请求归属的学校
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path

		school := "-"
		if tc, ok := tenant.FromContext(c.Request.Context()); ok && tc.SchoolID != "" {
			school = tc.SchoolID
		}

		log.Printf("[%s] %s %s %d %v school=%s",
			method,
			clientIP,
			path,
			statusCode,
			latency,
			school,
		)
	}
}
