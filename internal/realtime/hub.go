package realtime

import (
	"encoding/json"
	"sync"

	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Room identifiers are namespaced by kind so user and chat addressing
// spaces can't collide.
func UserRoom(userID string) string { return "user:" + userID }
func ChatRoom(chatID string) string { return "chat:" + chatID }

// Hub owns the room registry of the realtime layer. It is created at
// server startup and torn down with it; there is no package-level state.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds the client to the hub. An authenticated client joins its
// own user room right away, so out-of-band notifications reach it without
// any explicit join.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if c.UserID != "" {
		h.Join(c, UserRoom(c.UserID))
	}
}

// Unregister drops the client from every room and closes its send channel.
// Room membership is tied to socket lifetime; there is nothing else to
// clean up.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Emit sends an event frame to every client in the room. Delivery is
// at-most-once: a client whose buffer is full or that disconnected at
// emission time simply misses the frame. The sends happen under the read
// lock: Unregister closes send channels under the write lock, so a client
// can't be closed while a broadcast is in flight. The sends never block,
// so holding the lock is safe.
func (h *Hub) Emit(room string, event string, data interface{}) {
	frame, err := json.Marshal(Frame{Event: event, Data: mustRaw(data)})
	if err != nil {
		h.logger.WithError(err).Error("can't marshal outgoing frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- frame:
		default:
		}
	}
}

// BroadcastMessages implements the usecases.Broadcaster port.
func (h *Hub) BroadcastMessages(chatID string, messages []models.Message) {
	h.Emit(ChatRoom(chatID), ReceiveMessageEvent, messages)
}

// RoomSize reports how many clients are joined to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func mustRaw(data interface{}) json.RawMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return raw
}
