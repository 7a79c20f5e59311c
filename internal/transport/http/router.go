package http

import (
	"github.com/gin-gonic/gin"

	"github.com/NakshatraNamahaCreations/novus-dispatch/pkg/metrics"
)

func NewRouter(h *Handler, jwtSecret string, m *metrics.Dispatch) *gin.Engine {
	r := gin.Default()
	r.Use(Latency(m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	{
		agents := v1.Group("/agents")
		agents.Use(JWTAuth(jwtSecret))
		{
			agents.POST("/join", h.Join)
			agents.POST("/location", h.UpdateLocation)
			agents.GET("/pending-jobs", h.PendingJobs)
			agents.GET("/me/earnings", h.Earnings)
		}

		orders := v1.Group("/orders")
		{
			// order-intake collaborator surface
			orders.POST("", h.CreateOrder)
			orders.GET("/pending", h.PendingSnapshot)

			secured := orders.Group("")
			secured.Use(JWTAuth(jwtSecret))
			{
				secured.POST("/:id/accept", h.Accept)
				secured.POST("/:id/reject", h.Reject)
			}
		}

		v1.POST("/slots/reserve", h.ReserveSlot)
		v1.GET("/slots/:id/availability", h.SlotAvailability)
	}
	return r
}
