package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS allows any origin — the API sits behind the depot network, browsers
// only reach it through the ops dashboard. Preflights are answered here and
// cached so the dashboard does not re-preflight every dispatch call.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "43200")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
