package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under /api/v1. metrics may be nil.
func RegisterRoutes(r *gin.Engine, pc *PositionController, ac *ActivityController, metrics http.Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/positions", pc.HandleCreatePosition)
		v1.GET("/positions", pc.HandleListPositions)
		v1.POST("/positions/refresh", pc.HandleRefresh)
		v1.POST("/positions/sweep", pc.HandleSweep)
		v1.GET("/positions/:id", pc.HandleGetPosition)
		v1.DELETE("/positions/:id", pc.HandleDeletePosition)
		v1.GET("/positions/:id/summary", pc.HandleGetSummary)
		v1.POST("/positions/:id/trades", pc.HandleAddTrade)
		v1.DELETE("/positions/:id/trades/:tradeId", pc.HandleDeleteTrade)

		v1.GET("/symbols/normalize", pc.HandleNormalizeSymbol)

		if ac != nil {
			v1.GET("/activity", ac.HandleGetCurrentActivity)
			v1.GET("/activity/dates", ac.HandleListActivityLogs)
			v1.GET("/activity/:date", ac.HandleGetActivityByDate)
			v1.GET("/positions/:id/activity", ac.HandleGetPositionActivity)
		}
	}
}
