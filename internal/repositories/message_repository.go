package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrOwnMessage      = errors.New("cannot mark own message as seen")
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// MessageRepository is the ordered message log for conversations.
// Authorization (participant resolution) is the caller's responsibility.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content string) (models.Message, error)
	Page(ctx context.Context, conversationID, limit int, cursor *int) (models.MessagePage, error)
	MarkSeen(ctx context.Context, messageID, conversationID, readerID int) (models.Message, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create appends a message and touches the conversation's updated_at in one
// transaction, then returns the message with the sender summary attached.
// The serial id assigned at insert is the conversation's total order.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	if err := tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content) VALUES ($1, $2, $3)
        RETURNING id, conversation_id, sender_id, content, is_seen, created_at, updated_at`,
		conversationID, senderID, content).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID); err != nil {
		return models.Message{}, err
	}

	var sender models.UserSummary
	if err := tx.GetContext(ctx, &sender, `SELECT id, email, name FROM users WHERE id=$1`, senderID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}

	msg.Sender = &sender
	return msg, nil
}

// Page returns one cursor window of messages, oldest first. The query walks
// the log newest-first from the cursor and over-fetches one row to decide
// hasMore; the kept window is then reversed for display.
func (r *MessageRepo) Page(ctx context.Context, conversationID, limit int, cursor *int) (models.MessagePage, error) {
	limit = ClampLimit(limit)

	query := `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.is_seen, m.created_at, m.updated_at,
            u.email AS sender_email, u.name AS sender_name
        FROM messages m JOIN users u ON u.id = m.sender_id
        WHERE m.conversation_id = $1`
	args := []interface{}{conversationID}
	if cursor != nil {
		query += ` AND m.id < $2`
		args = append(args, *cursor)
	}
	query += ` ORDER BY m.id DESC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return models.MessagePage{}, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var row struct {
			models.Message
			SenderEmail string `db:"sender_email"`
			SenderName  string `db:"sender_name"`
		}
		if err := rows.StructScan(&row); err != nil {
			return models.MessagePage{}, err
		}
		msg := row.Message
		msg.Sender = &models.UserSummary{ID: msg.SenderID, Email: row.SenderEmail, Name: row.SenderName}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return models.MessagePage{}, err
	}

	return paginateWindow(msgs, limit), nil
}

// MarkSeen flips is_seen for a message read by the counterpart. Re-marking an
// already-seen message is a no-op success; marking one's own message fails.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID, conversationID, readerID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, is_seen, created_at, updated_at
        FROM messages WHERE id=$1 AND conversation_id=$2`, messageID, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID == readerID {
		return models.Message{}, ErrOwnMessage
	}

	err = r.db.QueryRowxContext(ctx, `UPDATE messages SET is_seen=TRUE, updated_at=NOW() WHERE id=$1
        RETURNING id, conversation_id, sender_id, content, is_seen, created_at, updated_at`, messageID).
		StructScan(&msg)
	return msg, err
}

// ClampLimit normalizes a page size to the 1..MaxPageLimit policy window.
func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// paginateWindow turns a newest-first over-fetched slice into a page:
// trims the probe row, records the continuation cursor and reverses to
// chronological order.
func paginateWindow(msgs []models.Message, limit int) models.MessagePage {
	page := models.MessagePage{Limit: limit, Messages: msgs}
	if len(msgs) > limit {
		page.HasMore = true
		page.Messages = msgs[:limit]
	}
	if page.HasMore && len(page.Messages) > 0 {
		oldest := page.Messages[len(page.Messages)-1].ID
		page.NextCursor = &oldest
	}
	for i, j := 0, len(page.Messages)-1; i < j; i, j = i+1, j-1 {
		page.Messages[i], page.Messages[j] = page.Messages[j], page.Messages[i]
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	return page
}
