package ws

import (
	"encoding/json"

	"messenger-service/internal/models"
)

// Event names form a closed set; the dispatch switch in the client read loop
// is exhaustive over the inbound ones and anything else is answered with an
// error event.
const (
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
	EventMessageNew        = "message:new"
	EventMessageSeen       = "message:seen"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"

	// Outbound only.
	EventJoinedConversation = "joined:conversation"
	EventLeftConversation   = "left:conversation"
	EventError              = "error"
)

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	ConversationID int `json:"conversationId"`
}

type newMessagePayload struct {
	ConversationID int    `json:"conversationId"`
	Content        string `json:"content"`
}

type seenPayload struct {
	MessageID      int `json:"messageId"`
	ConversationID int `json:"conversationId"`
}

type typingPayload struct {
	ConversationID int `json:"conversationId"`
}

// Outbound is the body of every server-sent frame.
type Outbound struct {
	Event   string `json:"event"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type roomAck struct {
	ConversationID int `json:"conversationId"`
}

type typingNotice struct {
	UserID         int `json:"userId"`
	ConversationID int `json:"conversationId"`
}

func encodeEvent(event string, data any) []byte {
	payload, _ := json.Marshal(Outbound{Event: event, Success: true, Data: data})
	return payload
}

func encodeError(message string) []byte {
	payload, _ := json.Marshal(Outbound{Event: EventError, Success: false, Message: message})
	return payload
}

func encodeMessage(msg models.Message) []byte {
	return encodeEvent(EventMessageNew, msg)
}

func encodeReceipt(receipt models.SeenReceipt) []byte {
	return encodeEvent(EventMessageSeen, receipt)
}
