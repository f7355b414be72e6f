package models

import "time"

// Message is one entry in a conversation log. The serial id doubles as the
// total order key and the pagination cursor.
type Message struct {
	ID             int          `db:"id" json:"id"`
	ConversationID int          `db:"conversation_id" json:"conversationId"`
	SenderID       int          `db:"sender_id" json:"senderId"`
	Content        string       `db:"content" json:"content"`
	IsSeen         bool         `db:"is_seen" json:"isSeen"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
	Sender         *UserSummary `db:"-" json:"sender,omitempty"`
}

// MessagePage is one cursor-paginated window of a conversation, oldest first.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"hasMore"`
	NextCursor *int      `json:"nextCursor"`
	Limit      int       `json:"limit"`
}

// SeenReceipt acknowledges that a message was read by its recipient.
type SeenReceipt struct {
	MessageID      int       `json:"messageId"`
	ConversationID int       `json:"conversationId"`
	SeenBy         int       `json:"seenBy"`
	SeenAt         time.Time `json:"seenAt"`
}
