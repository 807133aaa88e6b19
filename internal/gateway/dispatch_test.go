package gateway

import (
	"encoding/json"
	"testing"

	"chatcore/internal/domain/conversation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, sess Session, raw string) Frame {
	t.Helper()
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))
	var frames []Frame
	dispatch(sess, cmd, func(f Frame) { frames = append(frames, f) })
	require.Len(t, frames, 1, "every command yields exactly one result")
	return frames[0]
}

func TestDispatch_Select(t *testing.T) {
	sess := &fakeSession{}
	id := uuid.New()

	f := run(t, sess, `{"type":"select","id":"1","conversation_id":"`+id.String()+`"}`)

	assert.Equal(t, FrameResult, f.Type)
	assert.Equal(t, "1", f.ID)
	assert.True(t, f.Success)
	assert.Equal(t, id, sess.selected)
}

func TestDispatch_SendReturnsDraftID(t *testing.T) {
	sess := &fakeSession{}

	f := run(t, sess, `{"type":"send","id":"2","content":"hello","reply_to_id":null}`)

	require.True(t, f.Success)
	assert.Equal(t, map[string]uuid.UUID{"draft_id": uuid.MustParse("00000000-0000-7000-8000-000000000001")}, f.Data)
	require.Len(t, sess.drafts, 1)
	assert.Equal(t, "hello", sess.drafts[0].Content)
	assert.False(t, sess.drafts[0].ReplyToID.Valid)
}

func TestDispatch_ErrorsCarryCodes(t *testing.T) {
	sess := &fakeSession{}

	f := run(t, sess, `{"type":"send","id":"3","content":""}`)
	assert.False(t, f.Success)
	assert.Equal(t, "INVALID_INPUT", f.Code)

	f = run(t, sess, `{"type":"mark_read","id":"4"}`)
	assert.Equal(t, "NOT_ACTIVE", f.Code)

	f = run(t, sess, `{"type":"retry","id":"5","draft_id":"`+uuid.New().String()+`"}`)
	assert.Equal(t, "NOT_FOUND", f.Code)

	f = run(t, sess, `{"type":"teleport","id":"6"}`)
	assert.Equal(t, "INVALID_INPUT", f.Code)
	assert.Contains(t, f.Error, "teleport")
}

func TestDispatch_TypingStop(t *testing.T) {
	sess := &fakeSession{}

	f := run(t, sess, `{"type":"typing","stop":true}`)

	assert.True(t, f.Success)
	assert.True(t, sess.stopped)
	assert.Equal(t, []string{"stop_typing"}, sess.Calls())
}

func TestDispatch_CreatePassesOptions(t *testing.T) {
	sess := &fakeSession{}
	a := uuid.New()

	f := run(t, sess, `{"type":"create","kind":"group","title":"Launch","participant_ids":["`+a.String()+`"]}`)

	require.True(t, f.Success)
	assert.Equal(t, conversation.KindGroup, f.Data.(*conversation.Conversation).Kind)
	assert.Equal(t, "Launch", sess.created.Title)
	assert.Equal(t, []uuid.UUID{a}, sess.created.ParticipantIDs)
}

func TestDispatch_RoutesEveryCommand(t *testing.T) {
	sess := &fakeSession{}
	for _, typ := range []string{
		CmdEdit, CmdDelete, CmdReact, CmdArchive, CmdPin, CmdRefresh,
		CmdForward, CmdSearch, CmdMedia, CmdTranslate, CmdSummarize,
	} {
		run(t, sess, `{"type":"`+typ+`"}`)
	}
	assert.Equal(t, []string{
		"edit", "delete", "react", "archive", "pin", "refresh",
		"forward", "search", "media", "translate", "summarize",
	}, sess.Calls())
}
