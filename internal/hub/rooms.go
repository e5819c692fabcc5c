package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

// roomTable tracks which clients observe which conversation, sharded by
// conversation id so joins on unrelated rooms never contend.
type roomTable struct {
	shards [shardCount]*roomBucket
}

func newRoomTable() *roomTable {
	t := &roomTable{}
	for i := 0; i < shardCount; i++ {
		t.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}
	return t
}

func getShard(conversationID string) uint32 {
	if conversationID == "" {
		return 0
	}

	h := sha1.Sum([]byte(conversationID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// join adds the client to the conversation room. Idempotent.
func (t *roomTable) join(c *Client, conversationID string) {
	b := t.shards[getShard(conversationID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[conversationID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[conversationID] = room
	}
	room[c.ID] = c
	c.trackJoin(conversationID)
}

// leave removes the client from the room; empty rooms are dropped.
func (t *roomTable) leave(c *Client, conversationID string) {
	b := t.shards[getShard(conversationID)]
	b.Lock()
	defer b.Unlock()

	if room, ok := b.rooms[conversationID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, conversationID)
		}
	}
	c.trackLeave(conversationID)
}

// leaveAll removes the client from every room it joined. Called on
// disconnect.
func (t *roomTable) leaveAll(c *Client) {
	for _, conversationID := range c.joinedRooms() {
		t.leave(c, conversationID)
	}
}

// members returns a snapshot of the clients currently in the room.
func (t *roomTable) members(conversationID string) []*Client {
	b := t.shards[getShard(conversationID)]
	b.RLock()
	defer b.RUnlock()

	room, ok := b.rooms[conversationID]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	return clients
}

// drop removes a room entirely, detaching every member. Used when the
// conversation itself is deleted.
func (t *roomTable) drop(conversationID string) {
	b := t.shards[getShard(conversationID)]
	b.Lock()
	defer b.Unlock()

	if room, ok := b.rooms[conversationID]; ok {
		for _, c := range room {
			c.trackLeave(conversationID)
		}
		delete(b.rooms, conversationID)
	}
}

// snapshot lists every room with its member client ids, for the monitor.
func (t *roomTable) snapshot() map[string][]string {
	out := make(map[string][]string)
	for _, b := range t.shards {
		b.RLock()
		for conversationID, room := range b.rooms {
			ids := make([]string, 0, len(room))
			for id := range room {
				ids = append(ids, id)
			}
			out[conversationID] = ids
		}
		b.RUnlock()
	}
	return out
}
