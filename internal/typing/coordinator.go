package typing

import (
	"sync"
	"time"

	"messaging-service/internal/models"
)

// TTL is the soft expiry of a typing entry. The client times the indicator
// out independently; the server prunes lazily and on disconnect.
const TTL = 3 * time.Second

// Broadcaster fans a typing event out to a conversation room, skipping the
// originator's own connections.
type Broadcaster interface {
	BroadcastRoomExcept(room string, exceptUserID int, event models.OutboundEvent)
}

// Coordinator tracks which users are currently composing in which
// conversation. State is ephemeral and never persisted.
type Coordinator struct {
	mu      sync.Mutex
	entries map[int]map[int]time.Time // conversation -> user -> expiry
	hub     Broadcaster
	now     func() time.Time
}

// NewCoordinator builds an empty coordinator.
func NewCoordinator(hub Broadcaster) *Coordinator {
	return &Coordinator{
		entries: make(map[int]map[int]time.Time),
		hub:     hub,
		now:     time.Now,
	}
}

// SetTyping records (or refreshes) the user's typing entry and notifies the
// rest of the conversation.
func (c *Coordinator) SetTyping(conversationID, userID int) {
	c.mu.Lock()
	users, ok := c.entries[conversationID]
	if !ok {
		users = make(map[int]time.Time)
		c.entries[conversationID] = users
	}
	users[userID] = c.now().Add(TTL)
	c.mu.Unlock()

	c.hub.BroadcastRoomExcept(models.ConversationRoom(conversationID), userID, models.OutboundEvent{
		Event: models.EventTyping,
		Data:  models.TypingPayload{ConversationID: conversationID, UserID: userID},
	})
}

// ClearTyping removes the user's entry and notifies the conversation. A
// missing entry is not an error but emits no event.
func (c *Coordinator) ClearTyping(conversationID, userID int) {
	c.mu.Lock()
	removed := c.remove(conversationID, userID)
	c.mu.Unlock()

	if removed {
		c.hub.BroadcastRoomExcept(models.ConversationRoom(conversationID), userID, models.OutboundEvent{
			Event: models.EventStopTyping,
			Data:  models.TypingPayload{ConversationID: conversationID, UserID: userID},
		})
	}
}

// ClearUser drops every typing entry the user holds, emitting one stopTyping
// per affected conversation. Runs on disconnect so indicators never stick.
func (c *Coordinator) ClearUser(userID int) {
	c.mu.Lock()
	var affected []int
	for conversationID, users := range c.entries {
		if _, ok := users[userID]; ok {
			c.remove(conversationID, userID)
			affected = append(affected, conversationID)
		}
	}
	c.mu.Unlock()

	for _, conversationID := range affected {
		c.hub.BroadcastRoomExcept(models.ConversationRoom(conversationID), userID, models.OutboundEvent{
			Event: models.EventStopTyping,
			Data:  models.TypingPayload{ConversationID: conversationID, UserID: userID},
		})
	}
}

// ActiveUsers returns the users still composing in the conversation, pruning
// expired entries on the way.
func (c *Coordinator) ActiveUsers(conversationID int) []int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	users := c.entries[conversationID]
	var active []int
	for userID, expiry := range users {
		if now.After(expiry) {
			c.remove(conversationID, userID)
			continue
		}
		active = append(active, userID)
	}
	return active
}

// remove deletes an entry; caller holds the lock.
func (c *Coordinator) remove(conversationID, userID int) bool {
	users, ok := c.entries[conversationID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(c.entries, conversationID)
	}
	return true
}
