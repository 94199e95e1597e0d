package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func newTestSocketHandler(gw Gateway) (*SocketHandler, *Hub) {
	hub := NewHub(nil)
	return NewSocketHandler(hub, gw, nil), hub
}

func envelope(t *testing.T, event string, data any) models.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.Envelope{Event: event, Data: raw}
}

func TestDispatchNewMessage(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(1)
	hub.Register(client)

	gw.On("Send", mock.Anything, 1, 2, "hello", "").
		Return(models.PopulatedMessage{}, nil).Once()

	payload := map[string]any{
		"conversationId": 3,
		"sender":         map[string]any{"_id": 1},
		"recipientId":    2,
		"text":           "hello",
	}
	handler.dispatch(context.Background(), client, envelope(t, models.EventNewMessage, payload))

	gw.AssertExpectations(t)
}

func TestDispatchDropsPayloadMissingRecipient(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(1)
	hub.Register(client)

	payload := map[string]any{
		"conversationId": 3,
		"sender":         map[string]any{"_id": 1},
		"text":           "hello",
	}
	handler.dispatch(context.Background(), client, envelope(t, models.EventNewMessage, payload))

	gw.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchDropsUnknownEvent(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(1)
	hub.Register(client)

	handler.dispatch(context.Background(), client, models.Envelope{Event: "selfDestruct"})

	gw.AssertExpectations(t)
}

func TestDispatchTypingUsesAuthenticatedUser(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(9)
	hub.Register(client)

	// payload claims user 2, the socket identity wins
	gw.On("SetTyping", 5, 9).Once()
	handler.dispatch(context.Background(), client, envelope(t, models.EventTyping, map[string]any{
		"conversationId": 5,
		"userId":         2,
	}))

	gw.On("ClearTyping", 5, 9).Once()
	handler.dispatch(context.Background(), client, envelope(t, models.EventStopTyping, map[string]any{
		"conversationId": 5,
		"userId":         2,
	}))

	gw.AssertExpectations(t)
}

func TestDispatchJoinAndLeaveConversation(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(1)
	hub.Register(client)

	room := models.ConversationRoom(8)
	handler.dispatch(context.Background(), client, envelope(t, models.EventJoinConversation, map[string]any{"conversationId": 8}))
	assert.True(t, client.rooms[room])

	handler.dispatch(context.Background(), client, envelope(t, models.EventLeaveConversation, map[string]any{"conversationId": 8}))
	assert.False(t, client.rooms[room])
}

func TestDispatchMarkSeenUsesAuthenticatedViewer(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(4)
	hub.Register(client)

	gw.On("MarkSeen", mock.Anything, 6, 4).Return(nil).Once()
	handler.dispatch(context.Background(), client, envelope(t, models.EventMarkMessagesSeen, map[string]any{
		"conversationId": 6,
		"userId":         4,
	}))

	gw.AssertExpectations(t)
}

func TestDispatchGetOnlineUsers(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler, hub := newTestSocketHandler(gw)
	client := newTestClient(1)
	hub.Register(client)

	handler.dispatch(context.Background(), client, models.Envelope{Event: models.EventGetOnlineUsers})

	env := drain(t, client)
	assert.Equal(t, models.EventGetOnlineUsers, env.Event)

	var online []int
	assert.NoError(t, json.Unmarshal(env.Data, &online))
	assert.Equal(t, []int{1}, online)
}
