package models

import "time"

// Conversation is the unique two-party channel between a pair of users.
// The participant columns are stored normalized (lower id first) so the
// uniqueness constraint covers both argument orders.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	UserAID   int       `db:"user_a_id" json:"userAId"`
	UserBID   int       `db:"user_b_id" json:"userBId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant returns the counterpart of the given user.
func (c Conversation) OtherParticipant(userID int) int {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// LastMessage is the most recent message preview in a conversation listing.
type LastMessage struct {
	ID        int       `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	SenderID  int       `db:"sender_id" json:"senderId"`
	IsSeen    bool      `db:"is_seen" json:"isSeen"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ConversationSummary is the API view of a conversation for one user:
// the counterpart, the latest message (if any) and the unread count.
type ConversationSummary struct {
	ID          int          `json:"id"`
	OtherUser   UserSummary  `json:"otherUser"`
	LastMessage *LastMessage `json:"lastMessage"`
	UnreadCount int          `json:"unreadCount"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
