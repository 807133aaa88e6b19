package redis

import (
	"testing"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typingPayload(t *testing.T, convID uuid.UUID) []byte {
	t.Helper()
	data, err := events.Encode(&events.TypingBroadcast{
		ConversationID: convID,
		Principal:      principal.User(uuid.New()),
		DisplayName:    "Dana",
		Typing:         true,
		At:             time.Now(),
	}, time.Now())
	require.NoError(t, err)
	return data
}

func TestHub_DispatchFansOutPerChannel(t *testing.T) {
	hub := NewHub(nil, logger.Nop())
	convID := uuid.New()
	channel := events.TypingChannel(convID)

	var a, b, other []events.Event
	subA, err := hub.Subscribe(channel, func(ev events.Event) { a = append(a, ev) }, nil)
	require.NoError(t, err)
	_, err = hub.Subscribe(channel, func(ev events.Event) { b = append(b, ev) }, nil)
	require.NoError(t, err)
	_, err = hub.Subscribe(events.TypingChannel(uuid.New()), func(ev events.Event) { other = append(other, ev) }, nil)
	require.NoError(t, err)

	hub.dispatch(channel, typingPayload(t, convID))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Empty(t, other)
	got, ok := a[0].(*events.TypingBroadcast)
	require.True(t, ok)
	assert.Equal(t, convID, got.ConversationID)

	subA.Close()
	subA.Close()
	hub.dispatch(channel, typingPayload(t, convID))
	assert.Len(t, a, 1)
	assert.Len(t, b, 2)
}

func TestHub_DropsUndecodablePayload(t *testing.T) {
	hub := NewHub(nil, logger.Nop())
	called := false
	_, err := hub.Subscribe(events.ChannelConversations, func(events.Event) { called = true }, nil)
	require.NoError(t, err)

	hub.dispatch(events.ChannelConversations, []byte("not json"))
	assert.False(t, called)
}

func TestHub_ReconnectNotifiesEveryHandler(t *testing.T) {
	hub := NewHub(nil, logger.Nop())
	count := 0
	_, err := hub.Subscribe(events.ChannelConversations, nil, func() { count++ })
	require.NoError(t, err)
	_, err = hub.Subscribe(events.TypingChannel(uuid.New()), nil, func() { count++ })
	require.NoError(t, err)

	hub.notifyReconnect()
	assert.Equal(t, 2, count)
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	hub := NewHub(nil, logger.Nop())
	hub.Close()

	_, err := hub.Subscribe(events.ChannelConversations, nil, nil)
	assert.ErrorIs(t, err, chat_errors.ErrTransportClosed)
}
