package event

import "encoding/json"

// Client to Server
const (
	EventJoinConversation = "joinConversation"
	EventSeenMessage      = "seenMessage"
	EventSendMessage      = "sendMessage"
	EventDeleteMessage    = "deleteMessage"
)

// Server to Room
const (
	EventNewMessage          = "newMessage"
	EventMessageDeleted      = "messageDeleted"
	EventConversationDeleted = "conversationDeleted"
)

// Server to Client
const (
	EventErrorNotice = "errorNotice"
)

// WsEvent is the envelope every frame on the real-time channel carries.
// ConversationId is duplicated outside the payload so the hub can route
// and order the event without decoding the payload first.
type WsEvent struct {
	Event          string          `json:"event"`
	ConversationId string          `json:"conversationId"`
	Payload        json.RawMessage `json:"payload"`
}

// NewEvent builds an envelope for the given payload. Marshal errors are
// returned rather than swallowed so callers never emit a half-built frame.
func NewEvent(name string, conversationID string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{
		Event:          name,
		ConversationId: conversationID,
		Payload:        raw,
	}, nil
}
