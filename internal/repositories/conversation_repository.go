package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, userID int, otherID int) (models.Conversation, error)
	FindByParticipants(ctx context.Context, userID int, otherID int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID int, text string, senderID int) error
	MarkLastMessageSeen(ctx context.Context, conversationID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user1_id, user2_id, last_message_text, last_message_sender_id, last_message_seen, created_at, updated_at`

func sortedPair(a, b int) (int, int) {
	pair := []int{a, b}
	sort.Ints(pair)
	return pair[0], pair[1]
}

// FindOrCreate returns the conversation for the unordered user pair, creating
// it lazily on first contact.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	user1, user2 := sortedPair(userID, otherID)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (user1_id, user2_id)
        VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
        RETURNING `+conversationColumns, user1, user2).StructScan(&conv)
	return conv, err
}

// FindByParticipants looks up the conversation for the unordered user pair.
func (r *ConversationRepo) FindByParticipants(ctx context.Context, userID int, otherID int) (models.Conversation, error) {
	user1, user2 := sortedPair(userID, otherID)
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY updated_at DESC`, userID)
	return convs, err
}

// UpdateLastMessage refreshes the denormalized lastMessage snapshot. The
// snapshot always reflects the most recently sent message, so seen resets.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID int, text string, senderID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations
        SET last_message_text=$2, last_message_sender_id=$3, last_message_seen=FALSE, updated_at=NOW()
        WHERE id=$1`, conversationID, text, senderID)
	return err
}

// MarkLastMessageSeen flips the snapshot's seen flag.
func (r *ConversationRepo) MarkLastMessageSeen(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_seen=TRUE WHERE id=$1`, conversationID)
	return err
}
