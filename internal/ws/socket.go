package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway is the message pipeline the socket loop dispatches into.
type Gateway interface {
	Send(ctx context.Context, senderID, recipientID int, text, attachment string) (models.PopulatedMessage, error)
	MarkSeen(ctx context.Context, conversationID, viewerID int) error
	MarkDelivered(ctx context.Context, messageID int) error
	SetTyping(conversationID, userID int)
	ClearTyping(conversationID, userID int)
	DisconnectUser(userID int)
}

// SocketHandler owns the websocket endpoint: handshake, auth, the per
// connection read loop and disconnect cleanup.
type SocketHandler struct {
	hub     *Hub
	gateway Gateway
	auth    *middleware.Authenticator
}

func NewSocketHandler(hub *Hub, gateway Gateway, auth *middleware.Authenticator) *SocketHandler {
	return &SocketHandler{hub: hub, gateway: gateway, auth: auth}
}

// Handle upgrades the request and runs the read loop until the client goes
// away. Auth failures are rejected before the upgrade.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("ws").Start(c.Request.Context(), "ws.handshake")

	token := bearerToken(c)
	if token == "" {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.auth.ValidateToken(token)
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		log.Printf("websocket upgrade failed: user=%d err=%v", userID, err)
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	client := NewClient(conn, info)
	h.hub.Register(client)
	observability.IncWSActive()
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "messaging.ws.connect", observability.EventEnvelope{
		EventType: "ws",
		EventName: "ws_connect",
		Payload:   gin.H{"userId": userID, "connId": info.ConnID, "at": info.ConnectedAt},
	}, headers)

	// everyone sees the refreshed presence list, this client included
	h.broadcastOnlineUsers()

	go client.writePump()

	h.readLoop(ctx, client)

	offline := h.hub.Unregister(client)
	client.close()
	h.gateway.DisconnectUser(userID)
	observability.DecWSActive()
	if offline {
		h.broadcastOnlineUsers()
	}
	_ = observability.PublishEvent(ctx, "messaging.ws.disconnect", observability.EventEnvelope{
		EventType: "ws",
		EventName: "ws_disconnect",
		Payload:   gin.H{"userId": userID, "connId": info.ConnID, "at": time.Now()},
	}, headers)
}

func (h *SocketHandler) readLoop(ctx context.Context, client *Client) {
	client.conn.SetReadLimit(readLimit)
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: user=%d conn=%s err=%v", client.userID, client.info.ConnID, err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			h.dropMalformed(client, "envelope", err)
			continue
		}
		observability.IncWSEvent(env.Event, "inbound")
		h.dispatch(ctx, client, env)
	}
}

// dispatch routes one inbound event. Unknown events and payloads failing
// validation are dropped; business errors are logged but never close the
// connection.
func (h *SocketHandler) dispatch(ctx context.Context, client *Client, env models.Envelope) {
	switch env.Event {
	case models.EventNewMessage:
		var p models.NewMessagePayload
		if !h.decode(client, env, &p) {
			return
		}
		if _, err := h.gateway.Send(ctx, client.userID, p.RecipientID, p.Text, p.Img); err != nil {
			log.Printf("send failed: user=%d err=%v", client.userID, err)
		}
	case models.EventMessageDelivered:
		var p models.DeliveredPayload
		if !h.decode(client, env, &p) {
			return
		}
		if err := h.gateway.MarkDelivered(ctx, p.MessageID); err != nil {
			log.Printf("delivery ack failed: user=%d message=%d err=%v", client.userID, p.MessageID, err)
		}
	case models.EventMarkMessagesSeen:
		var p models.SeenPayload
		if !h.decode(client, env, &p) {
			return
		}
		if err := h.gateway.MarkSeen(ctx, p.ConversationID, client.userID); err != nil {
			log.Printf("mark seen failed: user=%d conversation=%d err=%v", client.userID, p.ConversationID, err)
		}
	case models.EventTyping:
		var p models.TypingPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.gateway.SetTyping(p.ConversationID, client.userID)
	case models.EventStopTyping:
		var p models.TypingPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.gateway.ClearTyping(p.ConversationID, client.userID)
	case models.EventJoinConversation:
		var p models.RoomPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.hub.JoinRoom(client, models.ConversationRoom(p.ConversationID))
	case models.EventLeaveConversation:
		var p models.RoomPayload
		if !h.decode(client, env, &p) {
			return
		}
		h.hub.LeaveRoom(client, models.ConversationRoom(p.ConversationID))
	case models.EventGetOnlineUsers:
		h.sendOnlineUsers(client)
	default:
		h.dropMalformed(client, env.Event, errors.New("unknown event"))
	}
}

// decode unmarshals and validates an inbound payload, dropping it on failure.
func (h *SocketHandler) decode(client *Client, env models.Envelope, payload interface{ Validate() error }) bool {
	if err := json.Unmarshal(env.Data, payload); err != nil {
		h.dropMalformed(client, env.Event, err)
		return false
	}
	if err := payload.Validate(); err != nil {
		h.dropMalformed(client, env.Event, err)
		return false
	}
	return true
}

func (h *SocketHandler) dropMalformed(client *Client, event string, err error) {
	observability.IncMalformedEvent()
	log.Printf("dropping malformed websocket event: user=%d conn=%s event=%s err=%v", client.userID, client.info.ConnID, event, err)
}

func (h *SocketHandler) broadcastOnlineUsers() {
	h.hub.BroadcastAll(models.OutboundEvent{
		Event: models.EventGetOnlineUsers,
		Data:  h.hub.OnlineUsers(),
	})
}

func (h *SocketHandler) sendOnlineUsers(client *Client) {
	payload, err := json.Marshal(models.OutboundEvent{
		Event: models.EventGetOnlineUsers,
		Data:  h.hub.OnlineUsers(),
	})
	if err != nil {
		return
	}
	observability.IncWSEvent(models.EventGetOnlineUsers, "outbound")
	client.trySend(payload)
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
		return header[7:]
	}
	return ""
}
