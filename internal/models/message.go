package models

import "time"

// Status is the delivery lifecycle stage of a message.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusSeen:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known lifecycle stages.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Advance returns the status after applying next. Transitions are monotonic:
// a status never moves backward, and re-applying the current stage is a no-op.
func (s Status) Advance(next Status) Status {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// Message represents a chat message. Only status and the legacy seen mirror
// mutate after creation.
type Message struct {
	ID             int       `db:"id" json:"_id"`
	ConversationID int       `db:"conversation_id" json:"conversationId"`
	SenderID       int       `db:"sender_id" json:"senderId"`
	RecipientID    int       `db:"recipient_id" json:"recipientId"`
	Text           string    `db:"text" json:"text"`
	Attachment     string    `db:"attachment" json:"img,omitempty"`
	Status         Status    `db:"status" json:"status"`
	Seen           bool      `db:"seen" json:"seen"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// UserInfo carries the display fields resolved from the user directory.
type UserInfo struct {
	ID         int    `json:"_id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// PopulatedMessage is a message enriched with sender display fields, the
// shape broadcast over sockets and returned from the REST surface.
type PopulatedMessage struct {
	Message
	Sender UserInfo `json:"sender"`
}
