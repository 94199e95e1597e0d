package models

import "time"

// Conversation is a pairwise chat thread. Participants are stored as a
// sorted pair so the same two users always map to one row.
type Conversation struct {
	ID                  int       `db:"id" json:"_id"`
	User1ID             int       `db:"user1_id" json:"-"`
	User2ID             int       `db:"user2_id" json:"-"`
	LastMessageText     string    `db:"last_message_text" json:"-"`
	LastMessageSenderID int       `db:"last_message_sender_id" json:"-"`
	LastMessageSeen     bool      `db:"last_message_seen" json:"-"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// LastMessage is the denormalized snapshot exposed in list views.
type LastMessage struct {
	Text     string `json:"text"`
	SenderID int    `json:"sender"`
	Seen     bool   `json:"seen"`
}

// Counterpart returns the other participant's id.
func (c Conversation) Counterpart(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ConversationView is the API shape of a conversation for one user: the
// counterpart's display info, self excluded.
type ConversationView struct {
	ID           int         `json:"_id"`
	Participants []UserInfo  `json:"participants"`
	LastMessage  LastMessage `json:"lastMessage"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
