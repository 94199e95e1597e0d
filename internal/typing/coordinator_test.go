package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func typingEvent(event string, conversationID, userID int) models.OutboundEvent {
	return models.OutboundEvent{
		Event: event,
		Data:  models.TypingPayload{ConversationID: conversationID, UserID: userID},
	}
}

func TestSetThenClearLeavesNoEntry(t *testing.T) {
	hub := new(mocks.BroadcasterMock)
	c := NewCoordinator(hub)

	hub.On("BroadcastRoomExcept", "conv:5", 1, typingEvent(models.EventTyping, 5, 1)).Once()
	hub.On("BroadcastRoomExcept", "conv:5", 1, typingEvent(models.EventStopTyping, 5, 1)).Once()

	c.SetTyping(5, 1)
	assert.Equal(t, []int{1}, c.ActiveUsers(5))

	c.ClearTyping(5, 1)
	assert.Empty(t, c.ActiveUsers(5))
	hub.AssertExpectations(t)
}

func TestClearWithoutEntryIsSilent(t *testing.T) {
	hub := new(mocks.BroadcasterMock)
	c := NewCoordinator(hub)

	c.ClearTyping(5, 1)

	hub.AssertNotCalled(t, "BroadcastRoomExcept", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetTypingRefreshesExpiry(t *testing.T) {
	hub := new(mocks.BroadcasterMock)
	hub.On("BroadcastRoomExcept", mock.Anything, mock.Anything, mock.Anything)
	c := NewCoordinator(hub)

	now := time.Now()
	c.now = func() time.Time { return now }

	c.SetTyping(5, 1)
	now = now.Add(2 * time.Second)
	c.SetTyping(5, 1)
	now = now.Add(2 * time.Second) // 4s after first signal, 2s after refresh
	assert.Equal(t, []int{1}, c.ActiveUsers(5))

	now = now.Add(TTL)
	assert.Empty(t, c.ActiveUsers(5))
}

func TestClearUserEmitsOneStopPerConversation(t *testing.T) {
	hub := new(mocks.BroadcasterMock)
	hub.On("BroadcastRoomExcept", mock.Anything, mock.Anything, mock.Anything)
	c := NewCoordinator(hub)

	c.SetTyping(5, 1)
	c.SetTyping(8, 1)
	c.SetTyping(8, 2)

	c.ClearUser(1)

	hub.AssertCalled(t, "BroadcastRoomExcept", "conv:5", 1, typingEvent(models.EventStopTyping, 5, 1))
	hub.AssertCalled(t, "BroadcastRoomExcept", "conv:8", 1, typingEvent(models.EventStopTyping, 8, 1))
	// three typing signals plus exactly two stop signals
	hub.AssertNumberOfCalls(t, "BroadcastRoomExcept", 5)

	assert.Empty(t, c.ActiveUsers(5))
	assert.Equal(t, []int{2}, c.ActiveUsers(8))
}
