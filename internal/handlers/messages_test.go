package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/gateway"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/messages", handler.SendMessage)
	r.GET("/messages/:otherUserId", handler.GetMessages)
	r.GET("/conversations", handler.GetConversations)
	r.POST("/conversations/:conversationId/seen", handler.MarkConversationSeen)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("Send", mock.Anything, 1, 2, "hi", "").
		Return(models.PopulatedMessage{Message: models.Message{ID: 7, ConversationID: 3, SenderID: 1, RecipientID: 2, Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"recipientId":2,"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 7, resp["_id"])
	assert.EqualValues(t, 3, resp["conversationId"])
	gw.AssertExpectations(t)
}

func TestSendMessageValidationError(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("Send", mock.Anything, 1, 2, "", "").
		Return(models.PopulatedMessage{}, &gateway.ValidationError{Reason: "recipient id and message or media required"}).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"recipientId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	gw.AssertExpectations(t)
}

func TestSendMessageRateLimited(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("Send", mock.Anything, 1, 2, "hi", "").
		Return(models.PopulatedMessage{}, ratelimit.ErrRateLimited).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"recipientId":2,"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	gw.AssertExpectations(t)
}

func TestSendMessageMalformedBody(t *testing.T) {
	handler := NewMessageHandler(new(mocks.GatewayMock), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesSuccess(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("GetMessages", mock.Anything, 1, 2, 1, defaultPageLimit).
		Return([]models.PopulatedMessage{{Message: models.Message{ID: 4, Text: "hey"}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.EqualValues(t, 4, resp[0]["_id"])
	gw.AssertExpectations(t)
}

func TestGetMessagesClampsLimit(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("GetMessages", mock.Anything, 1, 2, 3, maxPageLimit).
		Return([]models.PopulatedMessage{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2?page=3&limit=500", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	gw.AssertExpectations(t)
}

func TestGetMessagesInvalidUserID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.GatewayMock), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationsSuccess(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("GetConversations", mock.Anything, 1).
		Return([]models.ConversationView{{ID: 9}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	gw.AssertExpectations(t)
}

func TestGetConversationsError(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("GetConversations", mock.Anything, 1).
		Return(([]models.ConversationView)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	gw.AssertExpectations(t)
}

func TestMarkConversationSeenNotFound(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("MarkSeen", mock.Anything, 5, 1).Return(repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/seen", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	gw.AssertExpectations(t)
}

func TestMarkConversationSeenSuccess(t *testing.T) {
	gw := new(mocks.GatewayMock)
	handler := NewMessageHandler(gw, nil)
	router := setupMessageRouter(handler)

	gw.On("MarkSeen", mock.Anything, 5, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/seen", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	gw.AssertExpectations(t)
}
