package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Helpdesk/internal/db"
	"Helpdesk/internal/model"
)

// memoryChatRepository keeps the whole log in process memory behind one
// mutex, which makes every operation trivially atomic. Used by the test
// suite and by the storage-free dev mode.
type memoryChatRepository struct {
	mu            sync.Mutex
	messages      map[string][]model.Message // conversationID -> ascending createdAt
	conversations map[string]*model.Conversation
	clock         *sequenceClock
	logger        *zap.Logger
}

func NewMemoryChatRepository(logger *zap.Logger) ChatRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryChatRepository{
		messages:      make(map[string][]model.Message),
		conversations: make(map[string]*model.Conversation),
		clock:         newSequenceClock(),
		logger:        logger,
	}
}

func (m *memoryChatRepository) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *msg
	stored.SeenBy = append([]string(nil), msg.SeenBy...)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = m.clock.Next(stored.ConversationID)
	if !stored.SeenByUser(stored.SenderID) {
		stored.SeenBy = append(stored.SeenBy, stored.SenderID)
	}

	conv, ok := m.conversations[stored.ConversationID]
	if !ok {
		conv = newSummary(&stored)
		m.conversations[stored.ConversationID] = conv
	} else {
		applySummary(conv, &stored)
	}

	// The clock never goes backwards within a conversation, so appending
	// keeps the slice sorted ascending by created_at.
	m.messages[stored.ConversationID] = append(m.messages[stored.ConversationID], stored)

	m.logger.Debug("message appended",
		zap.String("message_id", stored.ID),
		zap.String("conversation_id", stored.ConversationID),
	)

	out := stored
	return &out, nil
}

func (m *memoryChatRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationID]
	out := make([]model.Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i]
		out[i].SeenBy = append([]string(nil), msgs[i].SeenBy...)
	}
	return out, nil
}

func (m *memoryChatRepository) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	const pageSize = int64(15)

	msgs, err := m.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	total := int64(len(msgs))
	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &db.PaginatedResult[model.Message]{
		Data:       msgs[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (m *memoryChatRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			// Hard delete. The conversation preview is intentionally left
			// stale; recomputing it would change observable behavior.
			m.messages[conversationID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryChatRepository) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		out = append(out, copyConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (m *memoryChatRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, conversationID)
	delete(m.messages, conversationID)
	m.clock.Forget(conversationID)
	return nil
}

func (m *memoryChatRepository) MarkSeen(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}

	msgs := m.messages[conversationID]
	for i := range msgs {
		if !msgs[i].SeenByUser(userID) {
			msgs[i].SeenBy = append(msgs[i].SeenBy, userID)
		}
	}

	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[string]int)
	}
	conv.UnreadCounts[userID] = 0
	return nil
}

func copyConversation(conv *model.Conversation) model.Conversation {
	out := *conv
	out.Participants = append([]model.Participant(nil), conv.Participants...)
	out.UnreadCounts = make(map[string]int, len(conv.UnreadCounts))
	for k, v := range conv.UnreadCounts {
		out.UnreadCounts[k] = v
	}
	return out
}
