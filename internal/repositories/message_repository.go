package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages. Status updates
// are guarded in SQL so a transition can never move a message backward even
// under concurrent writers.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID, recipientID int, text, attachment string) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	List(ctx context.Context, conversationID, page, limit int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int) (models.Message, bool, error)
	MarkSeenForViewer(ctx context.Context, conversationID, viewerID int) ([]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, text, attachment, status, seen, created_at`

// Create stores a message with status sent.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID, recipientID int, text, attachment string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, recipient_id, text, attachment, status)
        VALUES ($1, $2, $3, $4, $5, 'sent')
        RETURNING `+messageColumns, conversationID, senderID, recipientID, text, attachment).StructScan(&msg)
	return msg, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// List returns one page of a conversation's messages, newest first. Callers
// reverse the page for display order.
func (r *MessageRepo) List(ctx context.Context, conversationID, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, conversationID, limit, (page-1)*limit)
	return msgs, err
}

// MarkDelivered advances a sent message to delivered. The reported bool is
// false when the message had already advanced, making the call idempotent.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET status='delivered'
        WHERE id=$1 AND status='sent'
        RETURNING `+messageColumns, messageID).StructScan(&msg)
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, err
	}

	msg, err = r.Get(ctx, messageID)
	return msg, false, err
}

// MarkSeenForViewer advances every message the viewer has not yet seen from
// the other participant, in one batch, and returns the affected ids.
func (r *MessageRepo) MarkSeenForViewer(ctx context.Context, conversationID, viewerID int) ([]int, error) {
	rows, err := r.db.QueryxContext(ctx, `UPDATE messages SET seen=TRUE, status='seen'
        WHERE conversation_id=$1 AND sender_id<>$2 AND status<>'seen'
        RETURNING id`, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
