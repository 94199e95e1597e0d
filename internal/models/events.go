package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound socket event names. Together they form the closed set of events a
// client may send; anything else is dropped at the protocol boundary.
const (
	EventNewMessage        = "newMessage"
	EventMessageDelivered  = "messageDelivered"
	EventMarkMessagesSeen  = "markMessagesAsSeen"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventNewMessageNotice  = "newMessageNotification"
	EventMessagesSeen      = "messagesSeen"
	EventGetOnlineUsers    = "getOnlineUsers"
)

// ErrMalformedEvent reports an inbound payload missing required fields. It is
// logged and dropped by the socket loop, never surfaced to business logic.
var ErrMalformedEvent = errors.New("malformed event")

// Envelope frames every socket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is a server-to-client event ready for marshalling.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewMessagePayload is the inbound newMessage body.
type NewMessagePayload struct {
	ConversationID int    `json:"conversationId"`
	Sender         struct {
		ID int `json:"_id"`
	} `json:"sender"`
	RecipientID int    `json:"recipientId"`
	Text        string `json:"text"`
	Img         string `json:"img"`
}

func (p NewMessagePayload) Validate() error {
	if p.Sender.ID == 0 || p.RecipientID == 0 {
		return fmt.Errorf("%w: newMessage requires sender and recipient", ErrMalformedEvent)
	}
	return nil
}

// DeliveredPayload is the inbound messageDelivered ack body.
type DeliveredPayload struct {
	MessageID      int `json:"messageId"`
	ConversationID int `json:"conversationId"`
	RecipientID    int `json:"recipientId"`
}

func (p DeliveredPayload) Validate() error {
	if p.MessageID == 0 || p.ConversationID == 0 || p.RecipientID == 0 {
		return fmt.Errorf("%w: messageDelivered requires message, conversation and recipient", ErrMalformedEvent)
	}
	return nil
}

// SeenPayload is the inbound markMessagesAsSeen body.
type SeenPayload struct {
	ConversationID int `json:"conversationId"`
	UserID         int `json:"userId"`
}

func (p SeenPayload) Validate() error {
	if p.ConversationID == 0 || p.UserID == 0 {
		return fmt.Errorf("%w: markMessagesAsSeen requires conversation and user", ErrMalformedEvent)
	}
	return nil
}

// TypingPayload serves both typing and stopTyping.
type TypingPayload struct {
	ConversationID int `json:"conversationId"`
	UserID         int `json:"userId"`
}

func (p TypingPayload) Validate() error {
	if p.ConversationID == 0 || p.UserID == 0 {
		return fmt.Errorf("%w: typing requires conversation and user", ErrMalformedEvent)
	}
	return nil
}

// RoomPayload serves joinConversation and leaveConversation.
type RoomPayload struct {
	ConversationID int `json:"conversationId"`
}

func (p RoomPayload) Validate() error {
	if p.ConversationID == 0 {
		return fmt.Errorf("%w: room event requires conversation", ErrMalformedEvent)
	}
	return nil
}

// NoticePayload is the outbound newMessageNotification body, used for unread
// badges on the recipient side.
type NoticePayload struct {
	ConversationID int      `json:"conversationId"`
	Sender         UserInfo `json:"sender"`
	Text           string   `json:"text"`
	Img            string   `json:"img,omitempty"`
	MessageID      int      `json:"messageId"`
}

// SeenEventPayload is the outbound messagesSeen body, one batch per viewer.
type SeenEventPayload struct {
	ConversationID int   `json:"conversationId"`
	SeenMessages   []int `json:"seenMessages"`
}

// DeliveredEventPayload is the outbound messageDelivered body.
type DeliveredEventPayload struct {
	MessageID      int `json:"messageId"`
	ConversationID int `json:"conversationId"`
}
