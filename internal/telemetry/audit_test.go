package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messenger-service/internal/mocks"
)

func TestEmitWrapsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "messenger.audit", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "user_login" &&
			envelope.Service == "messenger-service" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == 42
	})).Return(nil).Once()

	emitter := NewAuditEmitter(publisher, "messenger.audit", "messenger-service", "test")
	userID := 42
	emitter.Emit(context.Background(), "user_login", "req-1", &userID, nil)

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "messenger.audit", mock.Anything).
		Return(errors.New("broker down")).Once()

	emitter := NewAuditEmitter(publisher, "messenger.audit", "messenger-service", "test")
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "message_sent", "", nil, nil)
	})
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "user_logout", "", nil, nil)
	})
}
