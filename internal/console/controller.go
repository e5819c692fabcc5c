package console

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"Helpdesk/internal/event"
	"Helpdesk/internal/model"
)

const (
	defaultFetchTimeout = 10 * time.Second
	noticeBufferSize    = 64
)

// Transport is the client's end of the real-time channel. The controller
// owns it through this interface so tests can substitute an in-memory fake.
type Transport interface {
	Emit(ev event.WsEvent) error
	Events() <-chan event.WsEvent
	Close() error
}

// Fetcher covers the REST-style bulk endpoints outside the real-time
// channel.
type Fetcher interface {
	FetchConversations(ctx context.Context) ([]model.Conversation, error)
	FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Notice is a transient, user-facing message for a recovered failure.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Controller keeps the operator's conversation directory and the single
// active timeline consistent under three concurrent inputs: bulk fetches,
// pushed events, and the operator's own actions. The server is the only
// source of truth for ids and ordering; a sent message renders only once
// its broadcast echo arrives.
type Controller struct {
	transport Transport
	fetcher   Fetcher
	operator  model.Operator
	logger    *zap.Logger

	fetchTimeout time.Duration

	mu        sync.Mutex
	directory []model.Conversation
	active    string
	timeline  []model.Message
	seenIDs   map[string]struct{} // every message id ever applied; the duplicate guard spans conversations

	notices chan Notice
}

func NewController(transport Transport, fetcher Fetcher, operator model.Operator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		transport:    transport,
		fetcher:      fetcher,
		operator:     operator,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		seenIDs:      make(map[string]struct{}),
		notices:      make(chan Notice, noticeBufferSize),
	}
}

// Notices delivers recovered failures for the UI to flash. Slow consumers
// lose notices rather than blocking the controller.
func (vc *Controller) Notices() <-chan Notice {
	return vc.notices
}

// -----------------------------------------------------------------
// Bulk loads
// -----------------------------------------------------------------

// LoadDirectory replaces the local directory from a bulk fetch. On failure
// the already-rendered list is kept untouched.
func (vc *Controller) LoadDirectory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, vc.fetchTimeout)
	defer cancel()

	convs, err := vc.fetcher.FetchConversations(ctx)
	if err != nil {
		err = classify(err)
		vc.notify("directoryLoadFailed", err.Error())
		return err
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivityAt.After(convs[j].LastActivityAt)
	})

	vc.mu.Lock()
	vc.directory = convs
	vc.mu.Unlock()
	return nil
}

// OpenConversation joins the room, bulk-loads its timeline and marks the
// thread seen for this operator.
func (vc *Controller) OpenConversation(ctx context.Context, conversationID string) error {
	join, err := event.NewEvent(event.EventJoinConversation, conversationID, event.JoinConversation{
		ConversationId: conversationID,
	})
	if err != nil {
		return err
	}
	if err := vc.transport.Emit(join); err != nil {
		vc.notify("joinFailed", err.Error())
		return classify(err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, vc.fetchTimeout)
	defer cancel()

	msgs, err := vc.fetcher.FetchMessages(fetchCtx, conversationID)
	if err != nil {
		err = classify(err)
		vc.notify("timelineLoadFailed", err.Error())
		return err
	}

	vc.mu.Lock()
	vc.active = conversationID
	vc.timeline = msgs
	// Merge rather than replace: ids applied for other conversations keep
	// guarding against late duplicate deliveries.
	for _, m := range msgs {
		vc.seenIDs[m.ID] = struct{}{}
	}
	for i := range vc.directory {
		if vc.directory[i].ConversationID == conversationID {
			vc.directory[i].UnreadCount = 0
		}
	}
	vc.mu.Unlock()

	vc.emitSeen(conversationID)
	return nil
}

// -----------------------------------------------------------------
// Operator actions
// -----------------------------------------------------------------

// SendText emits a text message into the active conversation. The message
// is not appended locally; the room broadcast (which includes the sender)
// supplies the authoritative copy, so it renders exactly once.
func (vc *Controller) SendText(text string) error {
	return vc.send(event.SendMessage{MessageType: event.MessageTypeText, Text: text})
}

// SendImage inlines the image as a self-describing data URI.
func (vc *Controller) SendImage(dataURI string) error {
	return vc.send(event.SendMessage{MessageType: event.MessageTypeImage, ImageDataUri: dataURI})
}

// SendFile references a pre-hosted file URL.
func (vc *Controller) SendFile(fileURL string) error {
	return vc.send(event.SendMessage{MessageType: event.MessageTypeFile, FileUrl: fileURL})
}

func (vc *Controller) send(out event.SendMessage) error {
	vc.mu.Lock()
	active := vc.active
	vc.mu.Unlock()

	if active == "" {
		return ErrNoActiveRoom
	}

	out.ConversationId = active
	out.SenderId = vc.operator.UserID
	out.SenderName = vc.operator.UserName
	out.SenderAvatar = vc.operator.UserAvatar
	if err := out.Validate(); err != nil {
		return err
	}

	ev, err := event.NewEvent(event.EventSendMessage, active, out)
	if err != nil {
		return err
	}
	// Fire-and-forget: a failed send is retried by the operator, never
	// silently re-emitted.
	if err := vc.transport.Emit(ev); err != nil {
		vc.notify("sendFailed", err.Error())
		return classify(err)
	}
	return nil
}

// DeleteMessage asks the server to delete one message of the active
// conversation; removal happens when messageDeleted comes back.
func (vc *Controller) DeleteMessage(messageID string) error {
	vc.mu.Lock()
	active := vc.active
	vc.mu.Unlock()

	if active == "" {
		return ErrNoActiveRoom
	}

	ev, err := event.NewEvent(event.EventDeleteMessage, active, event.DeleteMessage{
		MessageId:      messageID,
		ConversationId: active,
	})
	if err != nil {
		return err
	}
	if err := vc.transport.Emit(ev); err != nil {
		vc.notify("deleteFailed", err.Error())
		return classify(err)
	}
	return nil
}

// DeleteConversation goes through the REST endpoint; the broadcast prunes
// the directory on every open console, this one included. A NotFound means
// another operator got there first, so the directory is refreshed instead
// of treated as fatal.
func (vc *Controller) DeleteConversation(ctx context.Context, conversationID string) error {
	delCtx, cancel := context.WithTimeout(ctx, vc.fetchTimeout)
	defer cancel()

	err := classify(vc.fetcher.DeleteConversation(delCtx, conversationID))
	if errors.Is(err, ErrNotFound) {
		vc.notify("conversationGone", "conversation was already deleted")
		return vc.LoadDirectory(ctx)
	}
	if err != nil {
		vc.notify("deleteFailed", err.Error())
		return err
	}
	return nil
}

// -----------------------------------------------------------------
// Event reconciliation
// -----------------------------------------------------------------

// Run consumes pushed events until the context ends or the transport
// drops. On a drop the caller reconnects and calls Resync to close the gap.
func (vc *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-vc.transport.Events():
			if !ok {
				vc.notify("transportDropped", ErrTransportDropped.Error())
				return ErrTransportDropped
			}
			vc.HandleEvent(ev)
		}
	}
}

// Resync rebuilds the mirrors after a reconnect: reload the directory,
// rejoin the active room and refetch its timeline.
func (vc *Controller) Resync(ctx context.Context) error {
	if err := vc.LoadDirectory(ctx); err != nil {
		return err
	}

	vc.mu.Lock()
	active := vc.active
	vc.mu.Unlock()

	if active == "" {
		return nil
	}
	return vc.OpenConversation(ctx, active)
}

// HandleEvent applies one pushed event to the local mirrors.
func (vc *Controller) HandleEvent(ev event.WsEvent) {
	switch ev.Event {
	case event.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil || msg.ID == "" || msg.ConversationID == "" {
			vc.logger.Warn("malformed newMessage event", zap.Error(err))
			return
		}
		vc.applyNewMessage(msg)

	case event.EventMessageDeleted:
		p, err := event.Decode[event.MessageDeleted](ev.Payload)
		if err != nil {
			vc.logger.Warn("malformed messageDeleted event", zap.Error(err))
			return
		}
		vc.applyMessageDeleted(p.MessageId)

	case event.EventConversationDeleted:
		p, err := event.Decode[event.ConversationDeleted](ev.Payload)
		if err != nil {
			vc.logger.Warn("malformed conversationDeleted event", zap.Error(err))
			return
		}
		vc.applyConversationDeleted(p.ConversationId)

	case event.EventErrorNotice:
		p, err := event.Decode[event.ErrorNotice](ev.Payload)
		if err != nil {
			vc.logger.Warn("malformed errorNotice event", zap.Error(err))
			return
		}
		vc.notify(p.Code, p.Message)

	default:
		vc.logger.Debug("ignoring unknown event", zap.String("event", ev.Event))
	}
}

func (vc *Controller) applyNewMessage(msg model.Message) {
	vc.mu.Lock()

	// Duplicate delivery guard: the same id must not produce a second
	// directory mutation or timeline row.
	if _, dup := vc.seenIDs[msg.ID]; dup {
		vc.mu.Unlock()
		return
	}
	vc.seenIDs[msg.ID] = struct{}{}

	isActive := msg.ConversationID == vc.active

	found := false
	for i := range vc.directory {
		if vc.directory[i].ConversationID == msg.ConversationID {
			entry := &vc.directory[i]
			entry.LastMessagePreview = msg.Preview()
			entry.LastMessageType = msg.Type
			entry.LastMessageSenderID = msg.SenderID
			entry.LastActivityAt = msg.CreatedAt
			if !isActive && msg.SenderID != vc.operator.UserID {
				entry.UnreadCount++
			}
			found = true
			break
		}
	}
	if !found {
		// A brand-new conversation can arrive before any directory fetch
		// observed it; synthesize the entry from the message itself.
		entry := model.Conversation{
			ConversationID: msg.ConversationID,
			Participants: []model.Participant{{
				UserID:     msg.SenderID,
				UserName:   msg.SenderName,
				UserAvatar: msg.SenderAvatar,
			}},
			LastMessagePreview:  msg.Preview(),
			LastMessageType:     msg.Type,
			LastMessageSenderID: msg.SenderID,
			LastActivityAt:      msg.CreatedAt,
		}
		if !isActive && msg.SenderID != vc.operator.UserID {
			entry.UnreadCount = 1
		}
		vc.directory = append(vc.directory, entry)
	}

	// Linear re-sort on every message: fine at operator scale.
	sort.SliceStable(vc.directory, func(i, j int) bool {
		return vc.directory[i].LastActivityAt.After(vc.directory[j].LastActivityAt)
	})

	if isActive {
		vc.timeline = append(vc.timeline, msg)
	}
	vc.mu.Unlock()

	// Viewing the active conversation counts as seeing its new messages.
	if isActive && msg.SenderID != vc.operator.UserID {
		vc.emitSeen(msg.ConversationID)
	}
}

func (vc *Controller) applyMessageDeleted(messageID string) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	// Only the visible timeline changes; the directory preview stays as it
	// was even when the deleted message produced it.
	for i := range vc.timeline {
		if vc.timeline[i].ID == messageID {
			vc.timeline = append(vc.timeline[:i:i], vc.timeline[i+1:]...)
			return
		}
	}
}

func (vc *Controller) applyConversationDeleted(conversationID string) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	for i := range vc.directory {
		if vc.directory[i].ConversationID == conversationID {
			vc.directory = append(vc.directory[:i:i], vc.directory[i+1:]...)
			break
		}
	}

	if vc.active == conversationID {
		vc.active = ""
		vc.timeline = nil
	}
}

// -----------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------

// Directory returns a copy of the conversation list, newest activity first.
func (vc *Controller) Directory() []model.Conversation {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	out := make([]model.Conversation, len(vc.directory))
	copy(out, vc.directory)
	return out
}

// Timeline returns a copy of the active conversation's messages.
func (vc *Controller) Timeline() []model.Message {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	out := make([]model.Message, len(vc.timeline))
	copy(out, vc.timeline)
	return out
}

// ActiveConversation returns the id of the open conversation, if any.
func (vc *Controller) ActiveConversation() string {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.active
}

// -----------------------------------------------------------------
// Internals
// -----------------------------------------------------------------

func (vc *Controller) emitSeen(conversationID string) {
	ev, err := event.NewEvent(event.EventSeenMessage, conversationID, event.SeenMessage{
		ConversationId: conversationID,
		UserId:         vc.operator.UserID,
	})
	if err != nil {
		return
	}
	if err := vc.transport.Emit(ev); err != nil {
		vc.logger.Debug("seen emit failed", zap.Error(err))
	}
}

func (vc *Controller) notify(code, message string) {
	select {
	case vc.notices <- Notice{Code: code, Message: message}:
	default:
		// UI is not draining; drop the notice
	}
}

// classify maps transport and fetch failures onto the recoverable error
// classes the UI knows how to surface.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransportDropped):
		return err
	default:
		return err
	}
}
