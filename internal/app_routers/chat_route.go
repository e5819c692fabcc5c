package approuters

import (
	"github.com/gin-gonic/gin"

	"Helpdesk/internal/configuration"
	"Helpdesk/internal/handler"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/hd/api/chat", handler.RequireIdentity())
	{
		chatRoute.GET("/conversations", container.ChatHandler.GetConversations)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.GetConversationMessages)
		chatRoute.DELETE("/conversations/:conversationId", container.ChatHandler.DeleteConversation)
	}
}
