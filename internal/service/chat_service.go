package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"Helpdesk/internal/db"
	"Helpdesk/internal/event"
	"Helpdesk/internal/model"
	"Helpdesk/internal/repo"
)

// ChatService sits between the transports (hub, REST handlers) and the
// store. All mutation goes through here so derived directory fields never
// diverge from the message log.
type ChatService interface {
	SendMessage(ctx context.Context, out event.SendMessage) (*model.Message, error)
	DeleteMessage(ctx context.Context, p event.DeleteMessage) error
	DeleteConversation(ctx context.Context, conversationID string) error
	MarkSeen(ctx context.Context, conversationID, userID string) error
	ListConversations(ctx context.Context, viewerID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type chatService struct {
	repo   repo.ChatRepository
	logger *zap.Logger
}

func NewChatService(repo repo.ChatRepository, logger *zap.Logger) ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &chatService{
		repo:   repo,
		logger: logger,
	}
}

// SendMessage validates the payload and appends it; the store assigns id
// and createdAt, never the client.
func (s *chatService) SendMessage(ctx context.Context, out event.SendMessage) (*model.Message, error) {
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	msg, err := s.repo.AppendMessage(ctx, model.FromOutgoing(out))
	if err != nil {
		return nil, err
	}

	s.logger.Info("message sent",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", msg.ConversationID),
		zap.String("sender_id", msg.SenderID),
		zap.String("message_type", msg.Type),
	)
	return msg, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, p event.DeleteMessage) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.DeleteMessage(ctx, p.ConversationId, p.MessageId)
}

func (s *chatService) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.repo.DeleteConversation(ctx, conversationID)
}

func (s *chatService) MarkSeen(ctx context.Context, conversationID, userID string) error {
	return s.repo.MarkSeen(ctx, conversationID, userID)
}

// ListConversations projects the viewer's own unread count into each
// summary. The store keeps them sorted by last activity descending.
func (s *chatService) ListConversations(ctx context.Context, viewerID string) ([]model.Conversation, error) {
	convs, err := s.repo.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].ProjectFor(viewerID)
	}
	return convs, nil
}

func (s *chatService) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return s.repo.ListMessages(ctx, conversationID)
}

func (s *chatService) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	return s.repo.FilterMessages(ctx, conversationID, page)
}
