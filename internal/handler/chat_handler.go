package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Helpdesk/internal/event"
	"Helpdesk/internal/hub"
	"Helpdesk/internal/repo"
	"Helpdesk/internal/service"
)

type ChatHandler interface {
	GetConversations(c *gin.Context)
	GetConversationMessages(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
	hub     *hub.Hub
}

func NewChatHandler(service service.ChatService, hub *hub.Hub) ChatHandler {
	return &chatHandler{
		service: service,
		hub:     hub,
	}
}

// GetConversations returns every conversation summary; the client sorts by
// lastActivityAt descending (the store already returns them that way).
func (h *chatHandler) GetConversations(c *gin.Context) {
	operator := OperatorFrom(c)

	cvs, err := h.service.ListConversations(c.Request.Context(), operator.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get conversations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": cvs,
	})
}

// GetConversationMessages returns the ordered history; with ?page= it
// returns one page without changing the event contract.
func (h *chatHandler) GetConversationMessages(c *gin.Context) {
	conversationID := c.Param("conversationId")

	if pageParam := c.Query("page"); pageParam != "" {
		page, err := strconv.ParseInt(pageParam, 10, 64)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid page number",
			})
			return
		}

		result, err := h.service.FilterMessages(c.Request.Context(), conversationID, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get messages",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"messages":   result.Data,
			"total":      result.Total,
			"page":       result.Page,
			"totalPages": result.TotalPages,
		})
		return
	}

	msgs, err := h.service.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
	})
}

// DeleteConversation cascades the delete and broadcasts the removal so
// every open console drops the entry without re-fetching.
func (h *chatHandler) DeleteConversation(c *gin.Context) {
	conversationID := c.Param("conversationId")

	err := h.service.DeleteConversation(c.Request.Context(), conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete conversation",
		})
		return
	}

	out, err := event.NewEvent(event.EventConversationDeleted, conversationID, event.ConversationDeleted{
		ConversationId: conversationID,
	})
	if err == nil {
		h.hub.BroadcastToRoom(conversationID, out)
	}
	h.hub.DropRoom(conversationID)

	c.JSON(http.StatusOK, gin.H{
		"deleted": conversationID,
	})
}
