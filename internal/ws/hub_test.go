package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func newTestClient(userID int) *Client {
	return &Client{
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		info:   ConnInfo{ConnID: "test-conn", UserID: userID},
		rooms:  make(map[string]bool),
	}
}

func drain(t *testing.T, c *Client) models.Envelope {
	t.Helper()
	select {
	case payload := <-c.send:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	default:
		t.Fatal("expected a queued event")
		return models.Envelope{}
	}
}

func TestHubOnlineAcrossConnections(t *testing.T) {
	hub := NewHub(nil)
	first := newTestClient(7)
	second := newTestClient(7)

	hub.Register(first)
	hub.Register(second)
	assert.True(t, hub.IsOnline(7))
	assert.Len(t, hub.Connections(7), 2)

	offline := hub.Unregister(first)
	assert.False(t, offline)
	assert.True(t, hub.IsOnline(7))

	offline = hub.Unregister(second)
	assert.True(t, offline)
	assert.False(t, hub.IsOnline(7))
	assert.Nil(t, hub.Lookup(7))
}

func TestHubOnlineUsersSorted(t *testing.T) {
	hub := NewHub(nil)
	for _, id := range []int{42, 3, 17} {
		hub.Register(newTestClient(id))
	}

	assert.Equal(t, []int{3, 17, 42}, hub.OnlineUsers())
}

func TestHubBroadcastUser(t *testing.T) {
	hub := NewHub(nil)
	alice := newTestClient(1)
	bob := newTestClient(2)
	hub.Register(alice)
	hub.Register(bob)

	hub.BroadcastUser(1, models.OutboundEvent{Event: models.EventNewMessage, Data: "hi"})

	env := drain(t, alice)
	assert.Equal(t, models.EventNewMessage, env.Event)
	assert.Empty(t, bob.send)
}

func TestHubBroadcastRoomExcept(t *testing.T) {
	hub := NewHub(nil)
	alice := newTestClient(1)
	bob := newTestClient(2)
	hub.Register(alice)
	hub.Register(bob)

	room := models.ConversationRoom(9)
	hub.JoinRoom(alice, room)
	hub.JoinRoom(bob, room)

	hub.BroadcastRoomExcept(room, 1, models.OutboundEvent{Event: models.EventTyping})

	env := drain(t, bob)
	assert.Equal(t, models.EventTyping, env.Event)
	assert.Empty(t, alice.send)
}

func TestHubLeaveRoomStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	alice := newTestClient(1)
	hub.Register(alice)

	room := models.ConversationRoom(4)
	hub.JoinRoom(alice, room)
	hub.LeaveRoom(alice, room)

	hub.BroadcastRoom(room, models.OutboundEvent{Event: models.EventMessagesSeen})
	assert.Empty(t, alice.send)
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(nil)
	alice := newTestClient(1)
	hub.Register(alice)
	room := models.ConversationRoom(11)
	hub.JoinRoom(alice, room)

	hub.Unregister(alice)

	hub.BroadcastRoom(room, models.OutboundEvent{Event: models.EventMessagesSeen})
	assert.Empty(t, alice.send)
	assert.Empty(t, alice.rooms)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{
		send:   make(chan []byte), // unbuffered, never read
		userID: 5,
		rooms:  make(map[string]bool),
	}
	hub.Register(slow)

	hub.BroadcastUser(5, models.OutboundEvent{Event: models.EventNewMessage})

	assert.False(t, hub.IsOnline(5))
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub(nil)
	alice := newTestClient(1)
	bob := newTestClient(2)
	hub.Register(alice)
	hub.Register(bob)

	hub.BroadcastAll(models.OutboundEvent{Event: models.EventGetOnlineUsers, Data: hub.OnlineUsers()})

	require.Equal(t, models.EventGetOnlineUsers, drain(t, alice).Event)
	require.Equal(t, models.EventGetOnlineUsers, drain(t, bob).Event)
}
