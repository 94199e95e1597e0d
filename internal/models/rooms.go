package models

import "fmt"

// UserRoom names the broadcast room holding all of one user's connections.
func UserRoom(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationRoom names the broadcast room for a conversation.
func ConversationRoom(conversationID int) string {
	return fmt.Sprintf("conv:%d", conversationID)
}
