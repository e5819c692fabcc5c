package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"Helpdesk/internal/db"
	"Helpdesk/internal/model"
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

type mongoChatRepository struct {
	con           *mongo.Database
	messages      *db.Repository[model.Message]
	conversations *db.Repository[model.Conversation]
	clock         *sequenceClock
	logger        *zap.Logger
}

func NewMongoChatRepository(con *mongo.Database, messages *db.Repository[model.Message], conversations *db.Repository[model.Conversation], logger *zap.Logger) ChatRepository {
	return &mongoChatRepository{
		con:           con,
		messages:      messages,
		conversations: conversations,
		clock:         newSequenceClock(),
		logger:        logger,
	}
}

// -----------------------------------------------------------------------------
// AppendMessage
// -----------------------------------------------------------------------------

// AppendMessage persists the message and upserts the owning conversation
// summary inside one transaction, so a write failure never leaves the
// directory and the log disagreeing.
func (m *mongoChatRepository) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	stored := *msg
	stored.SeenBy = append([]string(nil), msg.SeenBy...)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = m.clock.Next(stored.ConversationID)
	if !stored.SeenByUser(stored.SenderID) {
		stored.SeenBy = append(stored.SeenBy, stored.SenderID)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		err := m.appendInTransaction(ctx, &stored)
		if err == nil {
			m.logger.Info("message appended",
				zap.String("message_id", stored.ID),
				zap.String("conversation_id", stored.ConversationID),
				zap.Int("attempt", attempt+1),
			)
			out := stored
			return &out, nil
		}

		lastErr = err
		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("append attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to append message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", stored.ConversationID),
	)

	return nil, fmt.Errorf("append message failed: %w", lastErr)
}

func (m *mongoChatRepository) appendInTransaction(ctx context.Context, msg *model.Message) error {
	session, err := m.con.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var conv model.Conversation
		findErr := m.conversations.Collection().FindOne(sc, bson.M{"_id": msg.ConversationID}).Decode(&conv)
		switch {
		case errors.Is(findErr, mongo.ErrNoDocuments):
			conv = *newSummary(msg)
		case findErr != nil:
			return nil, fmt.Errorf("load conversation: %w", findErr)
		default:
			applySummary(&conv, msg)
		}

		if _, insErr := m.messages.Create(sc, *msg); insErr != nil {
			return nil, fmt.Errorf("insert message: %w", insErr)
		}

		opts := options.Replace().SetUpsert(true)
		if _, upErr := m.conversations.Collection().ReplaceOne(sc, bson.M{"_id": conv.ConversationID}, conv, opts); upErr != nil {
			return nil, fmt.Errorf("upsert conversation: %w", upErr)
		}
		return nil, nil
	})
	return err
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *mongoChatRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	msgs, err := m.messages.FindAll(ctx, filter, opts)
	if err != nil {
		return nil, m.handleReadError(err, conversationID)
	}
	return msgs, nil
}

func (m *mongoChatRepository) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message filter",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.messages.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: 15,
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !m.isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, conversationID)
}

func (m *mongoChatRepository) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}})
	convs, err := m.conversations.FindAll(ctx, db.Empty(), opts)
	if err != nil {
		m.logger.Error("failed to query conversations", zap.Error(err))
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	m.logger.Debug("conversations retrieved", zap.Int("count", len(convs)))
	return convs, nil
}

// -----------------------------------------------------------------------------
// Deletes
// -----------------------------------------------------------------------------

func (m *mongoChatRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// The summary preview is intentionally not recomputed here.
	filter := db.NewFilter().Eq("_id", messageID).Eq("conversation_id", conversationID).Build()
	result, err := m.messages.Delete(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	m.logger.Info("message deleted",
		zap.String("message_id", messageID),
		zap.String("conversation_id", conversationID),
	)
	return nil
}

func (m *mongoChatRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	session, err := m.con.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		result, delErr := m.conversations.Collection().DeleteOne(sc, bson.M{"_id": conversationID})
		if delErr != nil {
			return nil, fmt.Errorf("delete conversation: %w", delErr)
		}
		if result.DeletedCount == 0 {
			return nil, ErrNotFound
		}

		filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
		if _, delErr := m.messages.DeleteMany(sc, filter); delErr != nil {
			return nil, fmt.Errorf("cascade messages: %w", delErr)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	m.clock.Forget(conversationID)
	m.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// -----------------------------------------------------------------------------
// MarkSeen
// -----------------------------------------------------------------------------

func (m *mongoChatRepository) MarkSeen(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"unread_counts." + userID: 0}}
	result, err := m.conversations.Collection().UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	filter := db.NewFilter().Eq("conversation_id", conversationID).Ne("seen_by", userID).Build()
	if _, err := m.messages.UpdateMany(ctx, filter, bson.M{"$addToSet": bson.M{"seen_by": userID}}); err != nil {
		return fmt.Errorf("mark messages seen: %w", err)
	}

	m.logger.Debug("conversation marked seen",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
	)
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *mongoChatRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *mongoChatRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *mongoChatRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	return false
}

func (m *mongoChatRepository) handleReadError(err error, conversationID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil // Not an error, just empty result
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("list messages failed: %w", err)
}
