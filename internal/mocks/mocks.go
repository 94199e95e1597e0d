package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindOrCreate(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) FindByParticipants(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateLastMessage(ctx context.Context, conversationID int, text string, senderID int) error {
	args := m.Called(ctx, conversationID, text, senderID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) MarkLastMessageSeen(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID, recipientID int, text, attachment string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, recipientID, text, attachment)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, conversationID, page, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, page, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int) (models.Message, bool, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkSeenForViewer(ctx context.Context, conversationID, viewerID int) ([]int, error) {
	args := m.Called(ctx, conversationID, viewerID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) BulkUsers(ctx context.Context, ids []int) (map[int]models.UserInfo, error) {
	args := m.Called(ctx, ids)
	var users map[int]models.UserInfo
	if val := args.Get(0); val != nil {
		users = val.(map[int]models.UserInfo)
	}
	return users, args.Error(1)
}

// BroadcasterMock satisfies the narrow broadcaster interfaces declared by the
// typing, delivery and gateway packages.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastRoom(room string, event models.OutboundEvent) {
	m.Called(room, event)
}

func (m *BroadcasterMock) BroadcastRoomExcept(room string, exceptUserID int, event models.OutboundEvent) {
	m.Called(room, exceptUserID, event)
}

func (m *BroadcasterMock) BroadcastUser(userID int, event models.OutboundEvent) {
	m.Called(userID, event)
}

func (m *BroadcasterMock) BroadcastAll(event models.OutboundEvent) {
	m.Called(event)
}

func (m *BroadcasterMock) IsOnline(userID int) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

// GatewayMock satisfies the gateway surfaces declared by the handlers and ws
// packages.
type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) Send(ctx context.Context, senderID, recipientID int, text, attachment string) (models.PopulatedMessage, error) {
	args := m.Called(ctx, senderID, recipientID, text, attachment)
	var msg models.PopulatedMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.PopulatedMessage)
	}
	return msg, args.Error(1)
}

func (m *GatewayMock) GetMessages(ctx context.Context, userID, otherUserID, page, limit int) ([]models.PopulatedMessage, error) {
	args := m.Called(ctx, userID, otherUserID, page, limit)
	var msgs []models.PopulatedMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.PopulatedMessage)
	}
	return msgs, args.Error(1)
}

func (m *GatewayMock) GetConversations(ctx context.Context, userID int) ([]models.ConversationView, error) {
	args := m.Called(ctx, userID)
	var convs []models.ConversationView
	if val := args.Get(0); val != nil {
		convs = val.([]models.ConversationView)
	}
	return convs, args.Error(1)
}

func (m *GatewayMock) MarkSeen(ctx context.Context, conversationID, viewerID int) error {
	args := m.Called(ctx, conversationID, viewerID)
	return args.Error(0)
}

func (m *GatewayMock) MarkDelivered(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *GatewayMock) SetTyping(conversationID, userID int) {
	m.Called(conversationID, userID)
}

func (m *GatewayMock) ClearTyping(conversationID, userID int) {
	m.Called(conversationID, userID)
}

func (m *GatewayMock) DisconnectUser(userID int) {
	m.Called(userID)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ directory.Directory = (*DirectoryMock)(nil)
