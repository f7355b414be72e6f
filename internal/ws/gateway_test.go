package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func newTestGateway(conversations *mocks.ConversationRepositoryMock, messages *mocks.MessageRepositoryMock) *Gateway {
	return &Gateway{
		hub:           NewHub(),
		conversations: conversations,
		messages:      messages,
	}
}

func attach(g *Gateway, userID int) *Client {
	return &Client{
		gateway: g,
		send:    make(chan []byte, 8),
		user:    models.UserSummary{ID: userID, Email: "user@example.com", Name: "User"},
	}
}

func decodeOutbound(t *testing.T, c *Client) Outbound {
	t.Helper()
	select {
	case payload := <-c.send:
		var out Outbound
		require.NoError(t, json.Unmarshal(payload, &out))
		return out
	default:
		t.Fatal("expected a queued frame")
		return Outbound{}
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	g := newTestGateway(nil, nil)
	c := attach(g, 1)

	c.dispatch([]byte(`{"event":"presence:ping","data":{}}`))

	out := decodeOutbound(t, c)
	assert.Equal(t, EventError, out.Event)
	assert.False(t, out.Success)
	assert.Equal(t, "unknown event", out.Message)
}

func TestDispatchMalformedFrame(t *testing.T) {
	g := newTestGateway(nil, nil)
	c := attach(g, 1)

	c.dispatch([]byte(`{"event":`))

	out := decodeOutbound(t, c)
	assert.Equal(t, EventError, out.Event)
	assert.Equal(t, "malformed event", out.Message)
}

func TestDispatchJoinMissingConversation(t *testing.T) {
	g := newTestGateway(nil, nil)
	c := attach(g, 1)

	c.dispatch([]byte(`{"event":"join:conversation","data":{}}`))

	out := decodeOutbound(t, c)
	assert.False(t, out.Success)
	assert.Equal(t, "conversationId is required", out.Message)
}

func TestDispatchMessageNewMissingContent(t *testing.T) {
	g := newTestGateway(nil, nil)
	c := attach(g, 1)

	c.dispatch([]byte(`{"event":"message:new","data":{"conversationId":7}}`))

	out := decodeOutbound(t, c)
	assert.False(t, out.Success)
	assert.Equal(t, "conversationId and content are required", out.Message)
}

func TestHandleJoinSuccess(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("GetForParticipant", mock.Anything, 7, 1).
		Return(models.Conversation{ID: 7, UserAID: 1, UserBID: 2}, nil).Once()

	g := newTestGateway(conversations, nil)
	c := attach(g, 1)

	g.handleJoin(c, 7)

	assert.True(t, g.hub.InRoom(7, c))
	out := decodeOutbound(t, c)
	assert.Equal(t, EventJoinedConversation, out.Event)
	assert.True(t, out.Success)
	conversations.AssertExpectations(t)
}

func TestHandleJoinNonParticipant(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("GetForParticipant", mock.Anything, 7, 1).
		Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	g := newTestGateway(conversations, nil)
	c := attach(g, 1)

	g.handleJoin(c, 7)

	assert.False(t, g.hub.InRoom(7, c))
	out := decodeOutbound(t, c)
	assert.Equal(t, EventError, out.Event)
	assert.Equal(t, repositories.ErrConversationNotFound.Error(), out.Message)
}

func TestHandleLeaveAcks(t *testing.T) {
	g := newTestGateway(nil, nil)
	c := attach(g, 1)
	g.hub.Join(7, c)

	g.handleLeave(c, 7)

	assert.False(t, g.hub.InRoom(7, c))
	out := decodeOutbound(t, c)
	assert.Equal(t, EventLeftConversation, out.Event)
}

func TestHandleMessageNewBroadcasts(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("GetForParticipant", mock.Anything, 7, 1).
		Return(models.Conversation{ID: 7, UserAID: 1, UserBID: 2}, nil).Once()

	messages := new(mocks.MessageRepositoryMock)
	messages.On("Create", mock.Anything, 7, 1, "hello there").
		Return(models.Message{ID: 42, ConversationID: 7, SenderID: 1, Content: "hello there"}, nil).Once()

	g := newTestGateway(conversations, messages)
	sender := attach(g, 1)
	peer := attach(g, 2)
	g.hub.Join(7, sender)
	g.hub.Join(7, peer)

	g.handleMessageNew(sender, newMessagePayload{ConversationID: 7, Content: "hello there"})

	// Both room members receive the append, the sender included.
	for _, c := range []*Client{sender, peer} {
		out := decodeOutbound(t, c)
		assert.Equal(t, EventMessageNew, out.Event)
		assert.True(t, out.Success)
	}
	messages.AssertExpectations(t)
}

func TestHandleMessageSeenBroadcastsReceipt(t *testing.T) {
	seenAt := time.Now()
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("GetForParticipant", mock.Anything, 7, 2).
		Return(models.Conversation{ID: 7, UserAID: 1, UserBID: 2}, nil).Once()

	messages := new(mocks.MessageRepositoryMock)
	messages.On("MarkSeen", mock.Anything, 42, 7, 2).
		Return(models.Message{ID: 42, ConversationID: 7, SenderID: 1, IsSeen: true, UpdatedAt: seenAt}, nil).Once()

	g := newTestGateway(conversations, messages)
	reader := attach(g, 2)
	g.hub.Join(7, reader)

	g.handleMessageSeen(reader, seenPayload{MessageID: 42, ConversationID: 7})

	out := decodeOutbound(t, reader)
	assert.Equal(t, EventMessageSeen, out.Event)
	data, err := json.Marshal(out.Data)
	require.NoError(t, err)
	var receipt models.SeenReceipt
	require.NoError(t, json.Unmarshal(data, &receipt))
	assert.Equal(t, 42, receipt.MessageID)
	assert.Equal(t, 2, receipt.SeenBy)
}

func TestHandleMessageSeenOwnMessage(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("GetForParticipant", mock.Anything, 7, 1).
		Return(models.Conversation{ID: 7, UserAID: 1, UserBID: 2}, nil).Once()

	messages := new(mocks.MessageRepositoryMock)
	messages.On("MarkSeen", mock.Anything, 42, 7, 1).
		Return(models.Message{}, repositories.ErrOwnMessage).Once()

	g := newTestGateway(conversations, messages)
	c := attach(g, 1)
	g.hub.Join(7, c)

	g.handleMessageSeen(c, seenPayload{MessageID: 42, ConversationID: 7})

	out := decodeOutbound(t, c)
	assert.Equal(t, EventError, out.Event)
	assert.Equal(t, repositories.ErrOwnMessage.Error(), out.Message)
}

func TestHandleTypingRequiresMembership(t *testing.T) {
	g := newTestGateway(nil, nil)
	sender := attach(g, 1)
	peer := attach(g, 2)
	g.hub.Join(7, peer)

	// Sender never joined, so the hint is dropped without a reply.
	g.handleTyping(sender, EventTypingStart, 7)
	assert.Empty(t, sender.send)
	assert.Empty(t, peer.send)

	g.hub.Join(7, sender)
	g.handleTyping(sender, EventTypingStart, 7)

	assert.Empty(t, sender.send)
	out := decodeOutbound(t, peer)
	assert.Equal(t, EventTypingStart, out.Event)
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenService("access", "refresh", time.Minute, time.Hour, new(mocks.TokenRepositoryMock), new(mocks.UserRepositoryMock))
	g := NewGateway(NewHub(), tokens, new(mocks.UserRepositoryMock), nil, nil, nil)

	router := gin.New()
	router.GET("/ws", g.Handle)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenService("access", "refresh", time.Minute, time.Hour, new(mocks.TokenRepositoryMock), new(mocks.UserRepositoryMock))
	g := NewGateway(NewHub(), tokens, new(mocks.UserRepositoryMock), nil, nil, nil)

	router := gin.New()
	router.GET("/ws", g.Handle)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=bogus", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
