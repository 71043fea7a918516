package middleware

import "github.com/gin-gonic/gin"

// NoStore marks responses as uncacheable. Snapshots go stale as soon as the
// advance timer fires.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
