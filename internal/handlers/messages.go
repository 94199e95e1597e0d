package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/gateway"
	"messaging-service/internal/models"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// Gateway is the message pipeline surface the REST handlers call into.
type Gateway interface {
	Send(ctx context.Context, senderID, recipientID int, text, attachment string) (models.PopulatedMessage, error)
	GetMessages(ctx context.Context, userID, otherUserID, page, limit int) ([]models.PopulatedMessage, error)
	GetConversations(ctx context.Context, userID int) ([]models.ConversationView, error)
	MarkSeen(ctx context.Context, conversationID, viewerID int) error
}

// MessageHandler serves the REST messaging endpoints.
type MessageHandler struct {
	gateway Gateway
	audit   *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(gw Gateway, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{gateway: gw, audit: audit}
}

// SendMessage persists and fans out a message to the recipient.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		RecipientID int    `json:"recipientId"`
		Text        string `json:"text"`
		Img         string `json:"img"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.gateway.Send(c.Request.Context(), userID, req.RecipientID, req.Text, req.Img)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("message sent conversation=%d message=%d", msg.ConversationID, msg.ID),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns the conversation history with another user, oldest
// first, marking unseen messages as seen as a side effect.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	otherUserID, err := strconv.Atoi(c.Param("otherUserId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	userID := c.GetInt("userID")
	msgs, err := h.gateway.GetMessages(c.Request.Context(), userID, otherUserID, page, limit)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// GetConversations lists the authenticated user's conversations, most
// recently active first.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.gateway.GetConversations(c.Request.Context(), userID)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, convs)
}

// MarkConversationSeen marks every unseen message addressed to the caller in
// the conversation as seen.
func (h *MessageHandler) MarkConversationSeen(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.gateway.MarkSeen(c.Request.Context(), conversationID, userID); err != nil {
		respondGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondGatewayError maps pipeline errors onto HTTP statuses.
func respondGatewayError(c *gin.Context, err error) {
	var validationErr *gateway.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.Is(err, ratelimit.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
