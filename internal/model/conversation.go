package model

import "time"

// Conversation is the directory summary of one support thread. It is
// created implicitly on the first message and updated on every append.
type Conversation struct {
	ConversationID      string        `json:"conversationId" bson:"_id"`
	Participants        []Participant `json:"participants" bson:"participants"`
	LastMessagePreview  string        `json:"lastMessagePreview" bson:"last_message_preview"`
	LastMessageType     string        `json:"lastMessageType" bson:"last_message_type"`
	LastMessageSenderID string        `json:"lastMessageSenderId" bson:"last_message_sender_id"`
	LastActivityAt      time.Time     `json:"lastActivityAt" bson:"last_activity_at"`

	// UnreadCounts is the per-viewer tally kept by the store; UnreadCount is
	// the caller's own count projected by the read path.
	UnreadCounts map[string]int `json:"-" bson:"unread_counts"`
	UnreadCount  int            `json:"unreadCount" bson:"-"`
}

// Participant is a denormalized member of a conversation. The first entry
// is conventionally the visitor.
type Participant struct {
	UserID     string `json:"userId" bson:"user_id"`
	UserName   string `json:"userName" bson:"user_name"`
	UserAvatar string `json:"userAvatar" bson:"user_avatar"`
}

// HasParticipant reports whether userID is already listed.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ProjectFor fills UnreadCount with the viewer's own tally.
func (c *Conversation) ProjectFor(viewerID string) {
	c.UnreadCount = c.UnreadCounts[viewerID]
}
