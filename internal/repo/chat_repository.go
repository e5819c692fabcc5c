package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"Helpdesk/internal/db"
	"Helpdesk/internal/model"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidMessage        = errors.New("invalid message: message cannot be nil")
	ErrInvalidConversationID = errors.New("invalid conversation ID: cannot be empty")
	ErrOperationTimeout      = errors.New("operation timeout exceeded")
)

// ChatRepository is the durable record of messages plus the conversation
// directory derived from them. AppendMessage must persist the message and
// update the owning summary atomically; the directory never diverges from
// the log except for the delete-preview gap (deleting a message does not
// recompute the cached preview).
type ChatRepository interface {
	AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	MarkSeen(ctx context.Context, conversationID, userID string) error
}

// sequenceClock hands out per-conversation timestamps that never move
// backwards, so ordering is resolved by the server even when two senders
// append in the same instant.
type sequenceClock struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newSequenceClock() *sequenceClock {
	return &sequenceClock{last: make(map[string]time.Time)}
}

func (c *sequenceClock) Next(conversationID string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if last, ok := c.last[conversationID]; ok && !now.After(last) {
		now = last.Add(time.Millisecond)
	}
	c.last[conversationID] = now
	return now
}

func (c *sequenceClock) Forget(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, conversationID)
}

func validateMessage(msg *model.Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	if msg.ConversationID == "" {
		return ErrInvalidConversationID
	}
	return nil
}

// applySummary folds a freshly appended message into its conversation
// summary: preview fields, activity timestamp, the sender joining the
// participant list, and unread tallies for everyone but the sender.
func applySummary(conv *model.Conversation, msg *model.Message) {
	conv.LastMessagePreview = msg.Preview()
	conv.LastMessageType = msg.Type
	conv.LastMessageSenderID = msg.SenderID
	conv.LastActivityAt = msg.CreatedAt

	if !conv.HasParticipant(msg.SenderID) {
		conv.Participants = append(conv.Participants, model.Participant{
			UserID:     msg.SenderID,
			UserName:   msg.SenderName,
			UserAvatar: msg.SenderAvatar,
		})
	}

	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[string]int)
	}
	// Unread accrues for every identity the thread knows about: the
	// participants plus anyone who registered as a viewer by marking the
	// thread seen. An operator who only reads still gets a badge.
	recipients := make(map[string]struct{}, len(conv.Participants)+len(conv.UnreadCounts))
	for _, p := range conv.Participants {
		recipients[p.UserID] = struct{}{}
	}
	for id := range conv.UnreadCounts {
		recipients[id] = struct{}{}
	}
	for id := range recipients {
		if id != msg.SenderID {
			conv.UnreadCounts[id]++
		}
	}
}

func newSummary(msg *model.Message) *model.Conversation {
	conv := &model.Conversation{
		ConversationID: msg.ConversationID,
		Participants:   []model.Participant{},
		UnreadCounts:   make(map[string]int),
	}
	applySummary(conv, msg)
	return conv
}
