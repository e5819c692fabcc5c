package hub

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Helpdesk/internal/event"
	"Helpdesk/internal/model"
	"Helpdesk/internal/repo"
	"Helpdesk/internal/service"
)

const handleTimeout = 10 * time.Second

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub is the real-time channel: it owns every connected client, the room
// table, and the worker pool that applies inbound events against the chat
// service before broadcasting the result back to the room.
type Hub struct {
	rooms *roomTable
	svc   service.ChatService

	online   map[string]*Client
	onlineMu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// One queue per worker. Events are dispatched by conversation id so all
	// events of a room flow through the same worker, preserving per-room
	// FIFO order.
	inbound []chan inboundMessage

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(svc service.ChatService) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		rooms:      newRoomTable(),
		svc:        svc,
		online:     make(map[string]*Client),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make([]chan inboundMessage, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.inbound[i] = make(chan inboundMessage, 256)
		h.wg.Add(1)
		go func(queue chan inboundMessage) {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-queue:
					if !ok {
						return
					}

					h.handleEvent(in.event, in.client)
				}
			}
		}(h.inbound[i])
	}

	return h
}

// enqueue dispatches an inbound event to the worker owning its
// conversation. Returns false when the queue stayed full past the timeout.
func (h *Hub) enqueue(in inboundMessage) bool {
	queue := h.inbound[getShard(in.event.ConversationId)%uint32(workerPoolSize)]
	select {
	case queue <- in:
		return true
	case <-time.After(inboundSendTimeout):
		return false
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	ctx, cancel := context.WithTimeout(h.ctx, handleTimeout)
	defer cancel()

	switch ev.Event {
	case event.EventJoinConversation:
		p, err := event.Decode[event.JoinConversation](ev.Payload)
		if err != nil {
			h.notifyError(c, "badRequest", err)
			return
		}
		if p.ConversationId != ev.ConversationId {
			h.notifyError(c, "badRequest", event.ErrConversationMismatch)
			return
		}
		h.rooms.join(c, p.ConversationId)
		log.Printf("client %s joined conversation %s", c.ID, p.ConversationId)

	case event.EventSendMessage:
		p, err := event.Decode[event.SendMessage](ev.Payload)
		if err != nil {
			h.notifyError(c, "badRequest", err)
			return
		}
		// Dispatch serialized on the envelope id; a payload pointing at a
		// different conversation would escape that room's FIFO order.
		if p.ConversationId != ev.ConversationId {
			h.notifyError(c, "badRequest", event.ErrConversationMismatch)
			return
		}
		// The sender fields come from the connection identity, not from the
		// payload, so a client cannot speak as someone else.
		p.SenderId = c.operator.UserID
		p.SenderName = c.operator.UserName
		p.SenderAvatar = c.operator.UserAvatar

		msg, err := h.svc.SendMessage(ctx, p)
		if err != nil {
			h.notifyError(c, codeFor(err), err)
			return
		}

		out, err := event.NewEvent(event.EventNewMessage, msg.ConversationID, msg)
		if err != nil {
			h.notifyError(c, "internal", err)
			return
		}
		h.BroadcastToRoom(msg.ConversationID, out)

	case event.EventDeleteMessage:
		p, err := event.Decode[event.DeleteMessage](ev.Payload)
		if err != nil {
			h.notifyError(c, "badRequest", err)
			return
		}
		if p.ConversationId != ev.ConversationId {
			h.notifyError(c, "badRequest", event.ErrConversationMismatch)
			return
		}
		if err := h.svc.DeleteMessage(ctx, p); err != nil {
			h.notifyError(c, codeFor(err), err)
			return
		}

		out, err := event.NewEvent(event.EventMessageDeleted, p.ConversationId, event.MessageDeleted{MessageId: p.MessageId})
		if err != nil {
			h.notifyError(c, "internal", err)
			return
		}
		h.BroadcastToRoom(p.ConversationId, out)

	case event.EventSeenMessage:
		p, err := event.Decode[event.SeenMessage](ev.Payload)
		if err != nil {
			h.notifyError(c, "badRequest", err)
			return
		}
		if p.ConversationId != ev.ConversationId {
			h.notifyError(c, "badRequest", event.ErrConversationMismatch)
			return
		}
		if err := h.svc.MarkSeen(ctx, p.ConversationId, p.UserId); err != nil {
			h.notifyError(c, codeFor(err), err)
		}

	default:
		log.Printf("unknown event type: %s", ev.Event)
		h.notifyError(c, "badRequest", errors.New("unknown event "+ev.Event))
	}
}

// BroadcastToRoom delivers the event to every member of the conversation
// room plus every connected operator. Operators render the directory for
// all conversations, so they receive summary-relevant events even for rooms
// they never joined. The sender is not excluded: its UI converges through
// the same path as everyone else's.
func (h *Hub) BroadcastToRoom(conversationID string, ev event.WsEvent) {
	targets := make(map[string]*Client)
	for _, c := range h.rooms.members(conversationID) {
		targets[c.ID] = c
	}

	h.onlineMu.RLock()
	for _, c := range h.online {
		if c.isOperator() {
			targets[c.ID] = c
		}
	}
	h.onlineMu.RUnlock()

	for _, c := range targets {
		if !c.SafeSend(ev, sendTimeout) {
			// egress full -> apply policy
			log.Printf("egress full for client %s in conversation %s", c.ID, conversationID)
			if kickOnFull {
				// Unregister (safe async)
				select {
				case h.unregister <- c:
				default:
				}
			}
		}
	}
}

// DropRoom detaches everyone from a deleted conversation's room.
func (h *Hub) DropRoom(conversationID string) {
	h.rooms.drop(conversationID)
}

func (h *Hub) notifyError(c *Client, code string, err error) {
	log.Printf("client %s: %s: %v", c.ID, code, err)
	out, mErr := event.NewEvent(event.EventErrorNotice, "", event.ErrorNotice{
		Code:    code,
		Message: err.Error(),
	})
	if mErr != nil {
		return
	}
	c.SafeSend(out, sendTimeout)
}

func codeFor(err error) string {
	if errors.Is(err, repo.ErrNotFound) {
		return "notFound"
	}
	if errors.Is(err, repo.ErrInvalidConversationID) || errors.Is(err, repo.ErrInvalidMessage) {
		return "badRequest"
	}
	return "internal"
}

func (h *Hub) addClient(c *Client) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.online[c.ID] = c
}

func (h *Hub) removeClient(c *Client) {
	h.rooms.leaveAll(c)

	h.onlineMu.Lock()
	delete(h.online, c.ID)
	h.onlineMu.Unlock()

	c.Close()
	log.Printf("client %s removed", c.ID)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	// Close all client connections
	h.onlineMu.RLock()
	for _, client := range h.online {
		client.Close()
	}
	h.onlineMu.RUnlock()

	// Workers exit via ctx; the queues are left open so a racing reader
	// can never hit a closed channel.
	h.wg.Wait()
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "", "http://localhost:4200":
		return true
	default:
		return false
	}
}

// ServeWS upgrades the connection and registers the client. The identity
// comes from the session provider via query parameters and is trusted.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	operator := model.Operator{
		UserID:     r.URL.Query().Get("userId"),
		UserName:   r.URL.Query().Get("userName"),
		UserAvatar: r.URL.Query().Get("userAvatar"),
		Role:       r.URL.Query().Get("role"),
	}
	if operator.UserID == "" {
		http.Error(w, "unauthenticated: userId is required", http.StatusUnauthorized)
		return
	}
	if operator.Role == "" {
		operator.Role = RoleOperator
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(operator, conn, h)
}
