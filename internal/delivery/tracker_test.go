package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func TestMarkDeliveredNotifiesSender(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	tracker := NewTracker(messages, new(mocks.ConversationRepositoryMock), hub)

	updated := models.Message{ID: 7, ConversationID: 5, SenderID: 1, RecipientID: 2, Status: models.StatusDelivered}
	messages.On("MarkDelivered", mock.Anything, 7).Return(updated, true, nil).Once()
	hub.On("BroadcastUser", 1, models.OutboundEvent{
		Event: models.EventMessageDelivered,
		Data:  models.DeliveredEventPayload{MessageID: 7, ConversationID: 5},
	}).Once()

	msg, err := tracker.MarkDelivered(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, msg.Status)

	messages.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestMarkDeliveredAlreadyAdvancedIsSilent(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	tracker := NewTracker(messages, new(mocks.ConversationRepositoryMock), hub)

	// delivered after seen: status stays seen and nothing is broadcast
	messages.On("MarkDelivered", mock.Anything, 7).Return(models.Message{ID: 7, Status: models.StatusSeen}, false, nil).Once()

	msg, err := tracker.MarkDelivered(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeen, msg.Status)

	hub.AssertNotCalled(t, "BroadcastUser", mock.Anything, mock.Anything)
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	tracker := NewTracker(messages, new(mocks.ConversationRepositoryMock), new(mocks.BroadcasterMock))

	messages.On("MarkDelivered", mock.Anything, 99).Return(models.Message{}, false, repositories.ErrMessageNotFound).Once()

	_, err := tracker.MarkDelivered(context.Background(), 99)
	assert.ErrorIs(t, err, repositories.ErrMessageNotFound)
}

func TestMarkConversationSeenBroadcastsOnce(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	tracker := NewTracker(messages, conversations, hub)

	messages.On("MarkSeenForViewer", mock.Anything, 5, 2).Return([]int{7, 8}, nil).Once()
	conversations.On("MarkLastMessageSeen", mock.Anything, 5).Return(nil).Once()
	hub.On("BroadcastRoom", "conv:5", models.OutboundEvent{
		Event: models.EventMessagesSeen,
		Data:  models.SeenEventPayload{ConversationID: 5, SeenMessages: []int{7, 8}},
	}).Once()

	ids, err := tracker.MarkConversationSeen(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, ids)

	messages.AssertExpectations(t)
	conversations.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestMarkConversationSeenIdempotent(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	tracker := NewTracker(messages, conversations, hub)

	// second call with nothing left to advance
	messages.On("MarkSeenForViewer", mock.Anything, 5, 2).Return(([]int)(nil), nil).Once()

	ids, err := tracker.MarkConversationSeen(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)

	conversations.AssertNotCalled(t, "MarkLastMessageSeen", mock.Anything, mock.Anything)
	hub.AssertNotCalled(t, "BroadcastRoom", mock.Anything, mock.Anything)
}
