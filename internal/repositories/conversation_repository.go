package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found or access denied")
	ErrSelfConversation     = errors.New("cannot create conversation with yourself")
)

const pqForeignKeyViolation = "23503"

// ConversationRepository resolves and creates two-party conversations.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID, otherUserID int) (models.Conversation, bool, error)
	GetForParticipant(ctx context.Context, conversationID, userID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user_a_id, user_b_id, created_at, updated_at`

// CreateOrGet returns the unique conversation for the pair, creating it on
// first contact. The pair is normalized to (low, high) before the insert and
// the table's uniqueness constraint resolves concurrent first contacts: the
// loser's insert hits the conflict, matches nothing, and falls through to the
// select. An unknown counterpart surfaces as ErrUserNotFound via the foreign
// key.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID, otherUserID int) (models.Conversation, bool, error) {
	if userID == otherUserID {
		return models.Conversation{}, false, ErrSelfConversation
	}
	low, high := userID, otherUserID
	if low > high {
		low, high = high, low
	}

	var conversation models.Conversation
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (user_a_id, user_b_id) VALUES ($1, $2)
        ON CONFLICT (user_a_id, user_b_id) DO NOTHING
        RETURNING `+conversationColumns, low, high).
		StructScan(&conversation)
	if err == nil {
		return conversation, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
			return models.Conversation{}, false, ErrUserNotFound
		}
		return models.Conversation{}, false, err
	}

	err = r.db.GetContext(ctx, &conversation, `SELECT `+conversationColumns+` FROM conversations
        WHERE user_a_id=$1 AND user_b_id=$2`, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		// Row vanished between insert and select; conversations are never
		// deleted in normal operation, so treat it as missing.
		return models.Conversation{}, false, ErrConversationNotFound
	}
	return conversation, false, err
}

// GetForParticipant returns the conversation only when the user belongs to
// it. A conversation the user is not part of is indistinguishable from a
// missing one.
func (r *ConversationRepo) GetForParticipant(ctx context.Context, conversationID, userID int) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.GetContext(ctx, &conversation, `SELECT `+conversationColumns+` FROM conversations
        WHERE id=$1 AND (user_a_id=$2 OR user_b_id=$2)`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conversation, err
}

// ListForUser returns the user's conversations ordered by recency, each with
// the counterpart, the latest message and the unread count.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user_a_id, c.user_b_id, c.created_at, c.updated_at,
            u.id AS other_id, u.email AS other_email, u.name AS other_name,
            m.id AS last_id, m.content AS last_content, m.sender_id AS last_sender_id,
            m.is_seen AS last_is_seen, m.created_at AS last_created_at,
            (SELECT COUNT(*) FROM messages WHERE conversation_id=c.id AND sender_id <> $1 AND is_seen = FALSE) AS unread_count
        FROM conversations c
        JOIN users u ON u.id = CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END
        LEFT JOIN LATERAL (
            SELECT id, content, sender_id, is_seen, created_at
            FROM messages WHERE conversation_id = c.id ORDER BY id DESC LIMIT 1
        ) m ON TRUE
        WHERE c.user_a_id = $1 OR c.user_b_id = $1
        ORDER BY c.updated_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var row struct {
			models.Conversation
			OtherID       int            `db:"other_id"`
			OtherEmail    string         `db:"other_email"`
			OtherName     string         `db:"other_name"`
			LastID        sql.NullInt64  `db:"last_id"`
			LastContent   sql.NullString `db:"last_content"`
			LastSenderID  sql.NullInt64  `db:"last_sender_id"`
			LastIsSeen    sql.NullBool   `db:"last_is_seen"`
			LastCreatedAt sql.NullTime   `db:"last_created_at"`
			UnreadCount   int            `db:"unread_count"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{
			ID:          row.ID,
			OtherUser:   models.UserSummary{ID: row.OtherID, Email: row.OtherEmail, Name: row.OtherName},
			UnreadCount: row.UnreadCount,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		}
		if row.LastID.Valid {
			summary.LastMessage = &models.LastMessage{
				ID:        int(row.LastID.Int64),
				Content:   row.LastContent.String,
				SenderID:  int(row.LastSenderID.Int64),
				IsSeen:    row.LastIsSeen.Bool,
				CreatedAt: row.LastCreatedAt.Time,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
