package model

import (
	"time"

	"Helpdesk/internal/event"
)

// Preview placeholders for non-text messages
const (
	ImagePreview = "[Image]"
	FilePreview  = "[File]"
)

// Message is a single chat message. Immutable after creation except for
// SeenBy additions; deletion is a hard delete broadcast to the room.
type Message struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	SenderID       string    `json:"senderId" bson:"sender_id"`
	SenderName     string    `json:"senderName" bson:"sender_name"`
	SenderAvatar   string    `json:"senderAvatar" bson:"sender_avatar"`
	Type           string    `json:"messageType" bson:"type"`
	Text           string    `json:"text,omitempty" bson:"text,omitempty"`
	ImageDataURI   string    `json:"imageDataUri,omitempty" bson:"image_data_uri,omitempty"`
	FileURL        string    `json:"fileUrl,omitempty" bson:"file_url,omitempty"`
	SeenBy         []string  `json:"seenBy" bson:"seen_by"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

// Preview derives the directory preview string for this message.
func (m *Message) Preview() string {
	switch m.Type {
	case event.MessageTypeImage:
		return ImagePreview
	case event.MessageTypeFile:
		return FilePreview
	default:
		return m.Text
	}
}

// SeenByUser reports whether userID is already in the SeenBy set.
func (m *Message) SeenByUser(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// FromOutgoing builds the message record for a sendMessage payload. The id
// and createdAt stay zero until the store assigns them.
func FromOutgoing(out event.SendMessage) *Message {
	return &Message{
		ConversationID: out.ConversationId,
		SenderID:       out.SenderId,
		SenderName:     out.SenderName,
		SenderAvatar:   out.SenderAvatar,
		Type:           out.MessageType,
		Text:           out.Text,
		ImageDataURI:   out.ImageDataUri,
		FileURL:        out.FileUrl,
		SeenBy:         []string{out.SenderId},
	}
}
