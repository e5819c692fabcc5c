package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message payload kinds
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

var (
	ErrMissingConversationID = errors.New("conversationId is required")
	ErrMissingMessageID      = errors.New("messageId is required")
	ErrMissingUserID         = errors.New("userId is required")
	ErrMissingSender         = errors.New("senderId is required")
	ErrBodyMismatch          = errors.New("message must carry exactly the payload its messageType declares")
	ErrConversationMismatch  = errors.New("envelope and payload conversationId must match")
)

// JoinConversation subscribes the caller to a conversation room. Idempotent.
type JoinConversation struct {
	ConversationId string `json:"conversationId"`
}

func (p JoinConversation) Validate() error {
	if p.ConversationId == "" {
		return ErrMissingConversationID
	}
	return nil
}

// SeenMessage marks every message of the conversation as seen by the viewer.
type SeenMessage struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
}

func (p SeenMessage) Validate() error {
	if p.ConversationId == "" {
		return ErrMissingConversationID
	}
	if p.UserId == "" {
		return ErrMissingUserID
	}
	return nil
}

// SendMessage is a Message before the server has assigned id and createdAt.
// Exactly one of Text / ImageDataUri / FileUrl is set, declared by MessageType.
type SendMessage struct {
	ConversationId string `json:"conversationId"`
	SenderId       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	SenderAvatar   string `json:"senderAvatar"`
	MessageType    string `json:"messageType"`
	Text           string `json:"text,omitempty"`
	ImageDataUri   string `json:"imageDataUri,omitempty"`
	FileUrl        string `json:"fileUrl,omitempty"`
}

func (p SendMessage) Validate() error {
	if p.ConversationId == "" {
		return ErrMissingConversationID
	}
	if p.SenderId == "" {
		return ErrMissingSender
	}

	switch p.MessageType {
	case MessageTypeText:
		if p.Text == "" || p.ImageDataUri != "" || p.FileUrl != "" {
			return ErrBodyMismatch
		}
	case MessageTypeImage:
		if p.ImageDataUri == "" || p.Text != "" || p.FileUrl != "" {
			return ErrBodyMismatch
		}
	case MessageTypeFile:
		if p.FileUrl == "" || p.Text != "" || p.ImageDataUri != "" {
			return ErrBodyMismatch
		}
	default:
		return fmt.Errorf("unknown messageType %q", p.MessageType)
	}
	return nil
}

// DeleteMessage asks the server to hard-delete one message.
type DeleteMessage struct {
	MessageId      string `json:"messageId"`
	ConversationId string `json:"conversationId"`
}

func (p DeleteMessage) Validate() error {
	if p.MessageId == "" {
		return ErrMissingMessageID
	}
	if p.ConversationId == "" {
		return ErrMissingConversationID
	}
	return nil
}

// MessageDeleted tells room members a message is gone.
type MessageDeleted struct {
	MessageId string `json:"messageId"`
}

func (p MessageDeleted) Validate() error {
	if p.MessageId == "" {
		return ErrMissingMessageID
	}
	return nil
}

// ConversationDeleted tells room members the whole thread is gone.
type ConversationDeleted struct {
	ConversationId string `json:"conversationId"`
}

func (p ConversationDeleted) Validate() error {
	if p.ConversationId == "" {
		return ErrMissingConversationID
	}
	return nil
}

// ErrorNotice is a non-fatal server-to-client notice for a refused action.
type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p ErrorNotice) Validate() error { return nil }

type payload interface {
	Validate() error
}

// Decode unmarshals and validates an event payload in one step so a
// malformed frame is rejected instead of silently misrendered.
func Decode[T payload](raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
