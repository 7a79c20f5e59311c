package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/auth"
	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
)

func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tok := strings.TrimPrefix(h, "Bearer ")
		claims, err := auth.ParseValidate(secret, tok)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("sub", claims.Sub)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func Latency(m *metrics.Dispatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m != nil {
			m.HTTPLatencyMS.
				WithLabelValues(c.FullPath()).
				Observe(float64(time.Since(start).Milliseconds()))
		}
	}
}
