package approuters

import (
	"github.com/gin-gonic/gin"

	"Helpdesk/internal/configuration"
)

func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorRoute := router.Group("/hd/api/monitor")
	{
		monitorRoute.GET("/stats", container.MonitorHandler.GetHubStats)
	}
}
