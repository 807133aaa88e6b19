package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	"chatcore/internal/readcursor"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type nopCursorStore struct{}

func (nopCursorStore) MarkRead(context.Context, uuid.UUID, principal.Ref, time.Time) error {
	return nil
}

func (nopCursorStore) ListParticipants(context.Context, uuid.UUID) ([]conversation.Participant, error) {
	return nil, nil
}

type storeHarness struct {
	sched   *loop.Manual
	repo    *MockRepository
	cursors *readcursor.Manager
	store   *Store
	self    principal.Ref
}

func newStoreHarness(t *testing.T) *storeHarness {
	ctrl := gomock.NewController(t)
	self := principal.User(uuid.New())
	sched := loop.NewManual(t0)
	repo := NewMockRepository(ctrl)
	cursors := readcursor.NewManager(sched, nopCursorStore{}, self, logger.Nop())
	store := NewStore(sched, repo, cursors, self, logger.Nop())
	store.clock = func() time.Time { return t0 }
	return &storeHarness{sched: sched, repo: repo, cursors: cursors, store: store, self: self}
}

func summary(id uuid.UUID, created time.Time, last *time.Time, unread int) conversation.Summary {
	return conversation.Summary{
		Conversation: conversation.Conversation{
			ID:            id,
			Kind:          conversation.KindInternal,
			CreatedAt:     created,
			LastMessageAt: last,
		},
		UnreadCount: unread,
	}
}

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func ids(list []conversation.Summary) []uuid.UUID {
	out := make([]uuid.UUID, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestRefresh_SortsByActivityAndSeedsUnread(t *testing.T) {
	h := newStoreHarness(t)
	quiet, busy, fresh := uuid.New(), uuid.New(), uuid.New()

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
		summary(quiet, t0.Add(-48*time.Hour), at(-24*time.Hour), 0),
		summary(busy, t0.Add(-48*time.Hour), at(-time.Minute), 3),
		summary(fresh, t0.Add(-time.Hour), nil, 1),
	}, nil)

	h.store.Refresh()
	h.sched.Drain()

	require.True(t, h.store.Loaded())
	require.NoError(t, h.store.Err())
	assert.Equal(t, []uuid.UUID{busy, fresh, quiet}, ids(h.store.List()))
	assert.Equal(t, 3, h.cursors.Unread(busy))
	assert.Equal(t, 4, h.store.TotalUnread())
}

func TestRefresh_TieBreaksOnID(t *testing.T) {
	h := newStoreHarness(t)
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
		summary(b, t0, at(time.Minute), 0),
		summary(a, t0, at(time.Minute), 0),
	}, nil)

	h.store.Refresh()
	h.sched.Drain()

	assert.Equal(t, []uuid.UUID{a, b}, ids(h.store.List()))
}

func TestRefresh_FailureShowsEmptyListUntilRetry(t *testing.T) {
	h := newStoreHarness(t)
	id := uuid.New()
	boom := errors.New("connection refused")

	gomock.InOrder(
		h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return(nil, boom),
		h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
			summary(id, t0, nil, 0),
		}, nil),
	)

	h.store.Refresh()
	h.sched.Drain()
	assert.ErrorIs(t, h.store.Err(), boom)
	assert.Empty(t, h.store.List())

	h.store.Refresh()
	h.sched.Drain()
	assert.NoError(t, h.store.Err())
	assert.Len(t, h.store.List(), 1)
}

func TestRefresh_CoalescesCallsWhileRunning(t *testing.T) {
	h := newStoreHarness(t)
	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return(nil, nil).Times(2)

	h.store.Refresh()
	h.store.Refresh()
	h.store.Refresh()
	h.sched.Drain()
}

func TestRefresh_ForgetsConversationsNoLongerListed(t *testing.T) {
	ctrl := gomock.NewController(t)
	self := principal.User(uuid.New())
	sched := loop.NewManual(t0)
	repo := NewMockRepository(ctrl)
	unread := NewMockUnreadTracker(ctrl)
	store := NewStore(sched, repo, unread, self, logger.Nop())

	kept, dropped := uuid.New(), uuid.New()
	gomock.InOrder(
		repo.EXPECT().ListForPrincipal(gomock.Any(), self).Return([]conversation.Summary{
			summary(kept, t0, nil, 0),
			summary(dropped, t0, nil, 2),
		}, nil),
		repo.EXPECT().ListForPrincipal(gomock.Any(), self).Return([]conversation.Summary{
			summary(kept, t0, nil, 0),
		}, nil),
	)
	unread.EXPECT().Seed(kept, nil, 0).Times(2)
	unread.EXPECT().Seed(dropped, nil, 2)
	unread.EXPECT().Forget(dropped)

	store.Refresh()
	sched.Drain()
	store.Refresh()
	sched.Drain()
}

func TestApplyMessage_NeverMovesSummaryBackwards(t *testing.T) {
	h := newStoreHarness(t)
	first, second := uuid.New(), uuid.New()

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
		summary(first, t0, at(2*time.Minute), 0),
		summary(second, t0, at(time.Minute), 0),
	}, nil)
	h.store.Refresh()
	h.sched.Drain()

	h.store.ApplyMessage(message.Message{
		ID:             uuid.New(),
		ConversationID: second,
		Content:        "newer",
		CreatedAt:      t0.Add(3 * time.Minute),
	})
	assert.Equal(t, []uuid.UUID{second, first}, ids(h.store.List()))

	h.store.ApplyMessage(message.Message{
		ID:             uuid.New(),
		ConversationID: second,
		Content:        "older",
		CreatedAt:      t0.Add(90 * time.Second),
	})

	got, ok := h.store.Get(second)
	require.True(t, ok)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "newer", *got.LastMessage)
	assert.True(t, got.LastMessageAt.Equal(t0.Add(3*time.Minute)))
}

func TestMarkArchived_RemovesAndPersists(t *testing.T) {
	h := newStoreHarness(t)
	id, other := uuid.New(), uuid.New()

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
		summary(id, t0, nil, 0),
		summary(other, t0, nil, 0),
	}, nil)
	h.store.Refresh()
	h.sched.Drain()

	h.repo.EXPECT().SetArchived(gomock.Any(), id, true).Return(nil)

	require.NoError(t, h.store.MarkArchived(id))
	assert.Equal(t, []uuid.UUID{other}, ids(h.store.List()))
	h.sched.Drain()

	assert.ErrorIs(t, h.store.MarkArchived(uuid.New()), chat_errors.ErrNotFound)
}

func TestMarkArchived_FailureRefreshesList(t *testing.T) {
	h := newStoreHarness(t)
	id := uuid.New()
	listed := []conversation.Summary{summary(id, t0, nil, 0)}

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return(listed, nil).Times(2)
	h.repo.EXPECT().SetArchived(gomock.Any(), id, true).Return(errors.New("timeout"))

	h.store.Refresh()
	h.sched.Drain()

	require.NoError(t, h.store.MarkArchived(id))
	assert.Empty(t, h.store.List())

	h.sched.Drain()
	assert.Equal(t, []uuid.UUID{id}, ids(h.store.List()))
}

func TestPin_UpdatesLocallyAndPersists(t *testing.T) {
	h := newStoreHarness(t)
	id, msgID := uuid.New(), uuid.New()
	pin := uuid.NullUUID{UUID: msgID, Valid: true}

	h.repo.EXPECT().ListForPrincipal(gomock.Any(), h.self).Return([]conversation.Summary{
		summary(id, t0, nil, 0),
	}, nil)
	h.repo.EXPECT().SetPinnedMessage(gomock.Any(), id, pin).Return(nil)

	h.store.Refresh()
	h.sched.Drain()

	require.NoError(t, h.store.Pin(id, pin))
	got, _ := h.store.Get(id)
	assert.Equal(t, pin, got.PinnedMessageID)
	h.sched.Drain()
}

func TestCreate_WritesConversationThenParticipants(t *testing.T) {
	h := newStoreHarness(t)
	alice, bob := uuid.New(), uuid.New()

	var created *conversation.Conversation
	h.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *conversation.Conversation) error {
			created = c
			return nil
		})
	h.repo.EXPECT().AddParticipants(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ps []conversation.Participant) error {
			require.Len(t, ps, 3)
			assert.Equal(t, h.self.ID, ps[0].PrincipalID)
			assert.True(t, ps[0].IsAdmin)
			assert.Equal(t, alice, ps[1].PrincipalID)
			assert.False(t, ps[1].IsAdmin)
			assert.Equal(t, bob, ps[2].PrincipalID)
			for _, p := range ps {
				assert.Equal(t, created.ID, p.ConversationID)
			}
			return nil
		})

	c, err := h.store.Create(context.Background(), conversation.KindGroup, conversation.CreateOptions{
		Title:          "  Launch  ",
		ParticipantIDs: []uuid.UUID{alice, h.self.ID, bob, alice},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, conversation.KindGroup, c.Kind)
	require.NotNil(t, c.Title)
	assert.Equal(t, "Launch", *c.Title)
	assert.Equal(t, h.self.ID, c.CreatedBy)
	assert.Len(t, c.Participants, 3)
}

func TestCreate_ParticipantFailureIsPartial(t *testing.T) {
	h := newStoreHarness(t)

	h.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	h.repo.EXPECT().AddParticipants(gomock.Any(), gomock.Any()).Return(errors.New("fk violation"))

	c, err := h.store.Create(context.Background(), conversation.KindInternal, conversation.CreateOptions{
		ParticipantIDs: []uuid.UUID{uuid.New()},
	})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, chat_errors.ErrPartialCreate)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	h := newStoreHarness(t)

	_, err := h.store.Create(context.Background(), conversation.Kind("broadcast"), conversation.CreateOptions{})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	_, err = h.store.Create(context.Background(), conversation.KindExternal, conversation.CreateOptions{})
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

func TestCreate_RowFailureWritesNoParticipants(t *testing.T) {
	h := newStoreHarness(t)
	boom := errors.New("insert failed")

	h.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(boom)

	c, err := h.store.Create(context.Background(), conversation.KindInternal, conversation.CreateOptions{})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, chat_errors.ErrPartialCreate)
}
