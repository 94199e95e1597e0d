package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"messaging-service/internal/delivery"
	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/typing"
)

// Operation keys for the rate limiter; each REST/socket operation counts
// against its own window.
const (
	OpSend             = "sendMessage"
	OpGetMessages      = "getMessages"
	OpGetConversations = "getConversations"
)

// ValidationError rejects an operation before any mutation. It is terminal
// for that operation only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Broadcaster is the outbound fan-out surface the gateway needs.
type Broadcaster interface {
	BroadcastRoom(room string, event models.OutboundEvent)
	BroadcastUser(userID int, event models.OutboundEvent)
	IsOnline(userID int) bool
}

// Gateway is the façade in front of the delivery core: it validates and
// rate-limits inbound operations, persists through the store collaborators,
// drives the delivery tracker and typing coordinator, and publishes outbound
// events through the hub. Broadcasts happen only after persistence succeeds.
type Gateway struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	tracker       *delivery.Tracker
	typing        *typing.Coordinator
	users         directory.Directory
	limiter       *ratelimit.Limiter
	hub           Broadcaster
	sanitizer     *bluemonday.Policy
}

// New builds a Gateway.
func New(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	tracker *delivery.Tracker,
	typingCoordinator *typing.Coordinator,
	users directory.Directory,
	limiter *ratelimit.Limiter,
	hub Broadcaster,
) *Gateway {
	return &Gateway{
		conversations: conversations,
		messages:      messages,
		tracker:       tracker,
		typing:        typingCoordinator,
		users:         users,
		limiter:       limiter,
		hub:           hub,
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

var allowedMediaTypes = []string{"image/", "video/", "audio/", "application/pdf", "text/"}

func validateAttachment(attachment string) error {
	if !strings.HasPrefix(attachment, "data:") {
		// already-uploaded references are opaque strings
		return nil
	}
	mediaType := strings.TrimPrefix(strings.SplitN(attachment, ";", 2)[0], "data:")
	for _, allowed := range allowedMediaTypes {
		if strings.HasPrefix(mediaType, allowed) {
			return nil
		}
	}
	return &ValidationError{Reason: "unsupported media type"}
}

// Send runs the full send flow and returns the populated message. The
// recipient's presence is checked at broadcast time, after the persistence
// await, so a mid-send disconnect is observed.
func (g *Gateway) Send(ctx context.Context, senderID, recipientID int, text, attachment string) (models.PopulatedMessage, error) {
	if err := g.limiter.Allow(senderID, OpSend); err != nil {
		observability.IncRateLimited(OpSend)
		return models.PopulatedMessage{}, err
	}

	if recipientID == 0 {
		return models.PopulatedMessage{}, &ValidationError{Reason: "recipient id and message or media required"}
	}
	if text == "" && attachment == "" {
		return models.PopulatedMessage{}, &ValidationError{Reason: "recipient id and message or media required"}
	}
	if attachment != "" {
		if err := validateAttachment(attachment); err != nil {
			return models.PopulatedMessage{}, err
		}
	}
	text = g.sanitizer.Sanitize(text)

	conv, err := g.conversations.FindOrCreate(ctx, senderID, recipientID)
	if err != nil {
		log.Printf("send failed: find conversation sender=%d recipient=%d err=%v", senderID, recipientID, err)
		return models.PopulatedMessage{}, fmt.Errorf("find conversation: %w", err)
	}

	msg, err := g.messages.Create(ctx, conv.ID, senderID, recipientID, text, attachment)
	if err != nil {
		log.Printf("send failed: persist message sender=%d recipient=%d conversation=%d err=%v", senderID, recipientID, conv.ID, err)
		return models.PopulatedMessage{}, fmt.Errorf("persist message: %w", err)
	}

	snapshot := text
	if snapshot == "" {
		snapshot = "Media"
	}
	if err := g.conversations.UpdateLastMessage(ctx, conv.ID, snapshot, senderID); err != nil {
		log.Printf("send failed: update snapshot sender=%d recipient=%d conversation=%d err=%v", senderID, recipientID, conv.ID, err)
		return models.PopulatedMessage{}, fmt.Errorf("update conversation: %w", err)
	}

	// Presence re-checked here, not cached from before the store round trips.
	if g.hub.IsOnline(recipientID) {
		if updated, err := g.tracker.MarkDelivered(ctx, msg.ID); err == nil {
			msg = updated
		} else {
			log.Printf("delivered upgrade failed: message=%d err=%v", msg.ID, err)
		}
	}

	populated := g.populate(ctx, msg)
	observability.IncMessageSent()

	g.hub.BroadcastRoom(models.ConversationRoom(conv.ID), models.OutboundEvent{
		Event: models.EventNewMessage,
		Data:  populated,
	})
	g.hub.BroadcastUser(senderID, models.OutboundEvent{
		Event: models.EventNewMessage,
		Data:  populated,
	})
	g.hub.BroadcastUser(recipientID, models.OutboundEvent{
		Event: models.EventNewMessageNotice,
		Data: models.NoticePayload{
			ConversationID: conv.ID,
			Sender:         populated.Sender,
			Text:           snapshot,
			Img:            attachment,
			MessageID:      msg.ID,
		},
	})

	return populated, nil
}

// MarkSeen batch-acknowledges the counterpart's messages in a conversation.
// Rate-limit exempt.
func (g *Gateway) MarkSeen(ctx context.Context, conversationID, viewerID int) error {
	conv, err := g.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(viewerID) {
		return &ValidationError{Reason: "user is not a conversation participant"}
	}

	if _, err := g.tracker.MarkConversationSeen(ctx, conversationID, viewerID); err != nil {
		log.Printf("mark seen failed: conversation=%d viewer=%d err=%v", conversationID, viewerID, err)
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// MarkDelivered applies a recipient-side delivery ack.
func (g *Gateway) MarkDelivered(ctx context.Context, messageID int) error {
	_, err := g.tracker.MarkDelivered(ctx, messageID)
	return err
}

// GetMessages returns one page of the conversation with otherUserID, oldest
// first within the page. Opening the conversation acknowledges the
// counterpart's unseen messages in one batch before the page is read, so the
// response carries the resulting statuses.
func (g *Gateway) GetMessages(ctx context.Context, userID, otherUserID, page, limit int) ([]models.PopulatedMessage, error) {
	if err := g.limiter.Allow(userID, OpGetMessages); err != nil {
		observability.IncRateLimited(OpGetMessages)
		return nil, err
	}

	conv, err := g.conversations.FindByParticipants(ctx, userID, otherUserID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return []models.PopulatedMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	if _, err := g.tracker.MarkConversationSeen(ctx, conv.ID, userID); err != nil {
		log.Printf("mark seen on fetch failed: conversation=%d viewer=%d err=%v", conv.ID, userID, err)
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	msgs, err := g.messages.List(ctx, conv.ID, page, limit)
	if err != nil {
		log.Printf("fetch messages failed: conversation=%d viewer=%d err=%v", conv.ID, userID, err)
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// newest-first page, reversed for display order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	senderIDs := make([]int, 0, 2)
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	infos := g.lookupUsers(ctx, senderIDs)

	result := make([]models.PopulatedMessage, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, models.PopulatedMessage{Message: m, Sender: userInfoOrID(infos, m.SenderID)})
	}
	return result, nil
}

// GetConversations lists the user's conversations with counterpart display
// info, the user itself excluded from participants.
func (g *Gateway) GetConversations(ctx context.Context, userID int) ([]models.ConversationView, error) {
	if err := g.limiter.Allow(userID, OpGetConversations); err != nil {
		observability.IncRateLimited(OpGetConversations)
		return nil, err
	}

	convs, err := g.conversations.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("list conversations failed: user=%d err=%v", userID, err)
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	counterparts := make([]int, 0, len(convs))
	for _, conv := range convs {
		counterparts = append(counterparts, conv.Counterpart(userID))
	}
	infos := g.lookupUsers(ctx, counterparts)

	views := make([]models.ConversationView, 0, len(convs))
	for _, conv := range convs {
		views = append(views, models.ConversationView{
			ID:           conv.ID,
			Participants: []models.UserInfo{userInfoOrID(infos, conv.Counterpart(userID))},
			LastMessage: models.LastMessage{
				Text:     conv.LastMessageText,
				SenderID: conv.LastMessageSenderID,
				Seen:     conv.LastMessageSeen,
			},
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		})
	}
	return views, nil
}

// SetTyping relays a typing signal into the coordinator.
func (g *Gateway) SetTyping(conversationID, userID int) {
	g.typing.SetTyping(conversationID, userID)
}

// ClearTyping relays a stop-typing signal into the coordinator.
func (g *Gateway) ClearTyping(conversationID, userID int) {
	g.typing.ClearTyping(conversationID, userID)
}

// DisconnectUser clears any typing state the user left behind. Called from
// the socket layer on every disconnect, in-flight operations notwithstanding.
func (g *Gateway) DisconnectUser(userID int) {
	g.typing.ClearUser(userID)
}

func (g *Gateway) populate(ctx context.Context, msg models.Message) models.PopulatedMessage {
	infos := g.lookupUsers(ctx, []int{msg.SenderID})
	return models.PopulatedMessage{Message: msg, Sender: userInfoOrID(infos, msg.SenderID)}
}

// lookupUsers tolerates directory failures: display fields degrade to bare
// ids, delivery itself is never blocked on the collaborator.
func (g *Gateway) lookupUsers(ctx context.Context, ids []int) map[int]models.UserInfo {
	infos, err := g.users.BulkUsers(ctx, ids)
	if err != nil {
		log.Printf("directory lookup failed: ids=%v err=%v", ids, err)
		return map[int]models.UserInfo{}
	}
	return infos
}

func userInfoOrID(infos map[int]models.UserInfo, id int) models.UserInfo {
	if info, ok := infos[id]; ok {
		return info
	}
	return models.UserInfo{ID: id}
}
