package delivery

import (
	"context"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Broadcaster publishes status-change events to rooms.
type Broadcaster interface {
	BroadcastRoom(room string, event models.OutboundEvent)
	BroadcastUser(userID int, event models.OutboundEvent)
}

// Tracker owns the sent -> delivered -> seen state machine. All transitions
// funnel through here; re-applying a stage is a no-op, never an error, and a
// status never moves backward.
type Tracker struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	hub           Broadcaster
}

// NewTracker builds a Tracker.
func NewTracker(messages repositories.MessageRepository, conversations repositories.ConversationRepository, hub Broadcaster) *Tracker {
	return &Tracker{messages: messages, conversations: conversations, hub: hub}
}

// MarkDelivered advances a message to delivered and notifies the sender's
// connections only; the recipient does not need to see its own ack.
func (t *Tracker) MarkDelivered(ctx context.Context, messageID int) (models.Message, error) {
	msg, changed, err := t.messages.MarkDelivered(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return msg, nil
	}

	observability.IncStatusTransition(string(models.StatusDelivered))
	t.hub.BroadcastUser(msg.SenderID, models.OutboundEvent{
		Event: models.EventMessageDelivered,
		Data:  models.DeliveredEventPayload{MessageID: msg.ID, ConversationID: msg.ConversationID},
	})
	return msg, nil
}

// MarkConversationSeen batch-advances every unseen counterpart message in the
// conversation, refreshes the lastMessage snapshot and broadcasts a single
// messagesSeen event. With nothing to advance it does nothing, so repeated
// calls are idempotent and emit no duplicate events.
func (t *Tracker) MarkConversationSeen(ctx context.Context, conversationID, viewerID int) ([]int, error) {
	ids, err := t.messages.MarkSeenForViewer(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := t.conversations.MarkLastMessageSeen(ctx, conversationID); err != nil {
		return nil, err
	}

	observability.AddStatusTransitions(string(models.StatusSeen), len(ids))
	t.hub.BroadcastRoom(models.ConversationRoom(conversationID), models.OutboundEvent{
		Event: models.EventMessagesSeen,
		Data:  models.SeenEventPayload{ConversationID: conversationID, SeenMessages: ids},
	})
	return ids, nil
}
