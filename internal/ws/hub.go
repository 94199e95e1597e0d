package ws

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const presenceTTL = 60 * time.Second

// Hub is the connection registry and room router: it maps user identities to
// their live connections and groups connections into named broadcast rooms
// (user:<id>, conv:<id>). One hub per process, torn down with it; all access
// goes through its methods.
type Hub struct {
	mu    sync.RWMutex
	users map[int]map[*Client]bool
	rooms map[string]map[*Client]bool

	// optional presence mirror for sibling services; nil disables it
	rdb *redis.Client
}

// NewHub creates an empty hub. rdb may be nil.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		users: make(map[int]map[*Client]bool),
		rooms: make(map[string]map[*Client]bool),
		rdb:   rdb,
	}
}

// Register adds a connection for its user and joins it to the user's own
// room. A user may hold any number of simultaneous connections.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if _, ok := h.users[c.userID]; !ok {
		h.users[c.userID] = make(map[*Client]bool)
	}
	h.users[c.userID][c] = true
	h.joinLocked(c, models.UserRoom(c.userID))
	h.mu.Unlock()

	h.mirrorPresence(c.userID, true)
}

// Unregister drops the connection from the registry and every room it
// joined. It reports whether the user went offline with it.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	offline := false
	if conns, ok := h.users[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.userID)
			offline = true
		}
	}
	h.mu.Unlock()

	if offline {
		h.mirrorPresence(c.userID, false)
	}
	return offline
}

// JoinRoom adds the connection to a named room.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, room)
}

// LeaveRoom removes the connection from a named room.
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Lookup returns an arbitrary live connection for the user, preserved for
// legacy single-socket addressing. Prefer the user room for fan-out.
func (h *Hub) Lookup(userID int) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		return c
	}
	return nil
}

// Connections returns every live connection for the user.
func (h *Hub) Connections(userID int) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	return conns
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// OnlineUsers returns a sorted snapshot of every online user id.
func (h *Hub) OnlineUsers() []int {
	h.mu.RLock()
	ids := make([]int, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

// BroadcastRoom sends the event to every connection in the room.
func (h *Hub) BroadcastRoom(room string, event models.OutboundEvent) {
	h.broadcast(h.roomClients(room, 0), event)
}

// BroadcastRoomExcept sends the event to the room, skipping every connection
// belonging to exceptUserID.
func (h *Hub) BroadcastRoomExcept(room string, exceptUserID int, event models.OutboundEvent) {
	h.broadcast(h.roomClients(room, exceptUserID), event)
}

// BroadcastUser sends the event to all of one user's connections.
func (h *Hub) BroadcastUser(userID int, event models.OutboundEvent) {
	h.BroadcastRoom(models.UserRoom(userID), event)
}

// BroadcastAll sends the event to every live connection.
func (h *Hub) BroadcastAll(event models.OutboundEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.users))
	for _, conns := range h.users {
		for c := range conns {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	h.broadcast(clients, event)
}

func (h *Hub) roomClients(room string, exceptUserID int) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if exceptUserID != 0 && c.userID == exceptUserID {
			continue
		}
		clients = append(clients, c)
	}
	return clients
}

// broadcast marshals once and hands the payload to each client's writer. A
// client whose send buffer is full is a dead or stuck consumer: it gets
// dropped from the hub rather than stalling everyone else.
func (h *Hub) broadcast(clients []*Client, event models.OutboundEvent) {
	if len(clients) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal error: event=%s err=%v", event.Event, err)
		return
	}

	observability.IncWSEvent(event.Event, "outbound")
	for _, c := range clients {
		if !c.trySend(payload) {
			log.Printf("dropping slow websocket consumer: user=%d conn=%s", c.userID, c.info.ConnID)
			h.Unregister(c)
			c.close()
		}
	}
}

func (h *Hub) mirrorPresence(userID int, online bool) {
	if h.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := "presence:" + strconv.Itoa(userID)
	var err error
	if online {
		err = h.rdb.Set(ctx, key, "online", presenceTTL).Err()
	} else {
		err = h.rdb.Del(ctx, key).Err()
	}
	if err != nil {
		log.Printf("presence mirror error: user=%d err=%v", userID, err)
	}
}
