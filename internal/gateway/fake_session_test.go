package gateway

import (
	"sync"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/messages"
	"chatcore/internal/session"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
)

type fakeSession struct {
	mu       sync.Mutex
	calls    []string
	selected uuid.UUID
	drafts   []messages.Draft
	started  bool
	closed   bool
	stopped  bool
	created  conversation.CreateOptions
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSession) Tick(time.Time) {}

func (f *fakeSession) View() session.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.View{Active: f.selected}
}

func (f *fakeSession) Select(id uuid.UUID) error {
	f.record("select")
	f.mu.Lock()
	f.selected = id
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Send(d messages.Draft) (uuid.UUID, error) {
	f.record("send")
	if d.Content == "" {
		return uuid.Nil, chat_errors.ErrInvalidInput
	}
	f.mu.Lock()
	f.drafts = append(f.drafts, d)
	f.mu.Unlock()
	return uuid.MustParse("00000000-0000-7000-8000-000000000001"), nil
}

func (f *fakeSession) Retry(uuid.UUID) error      { f.record("retry"); return chat_errors.ErrNotFound }
func (f *fakeSession) Edit(uuid.UUID, string) error { f.record("edit"); return nil }
func (f *fakeSession) Delete(uuid.UUID) error     { f.record("delete"); return nil }
func (f *fakeSession) React(uuid.UUID, string) error {
	f.record("react")
	return nil
}
func (f *fakeSession) Typing() error { f.record("typing"); return nil }
func (f *fakeSession) StopTyping() {
	f.record("stop_typing")
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakeSession) MarkRead() error          { f.record("mark_read"); return chat_errors.ErrNotActive }
func (f *fakeSession) Archive(uuid.UUID) error  { f.record("archive"); return nil }
func (f *fakeSession) Pin(uuid.UUID, uuid.NullUUID) error {
	f.record("pin")
	return nil
}
func (f *fakeSession) Refresh() { f.record("refresh") }

func (f *fakeSession) Create(kind conversation.Kind, opts conversation.CreateOptions, reply session.Reply) {
	f.record("create")
	f.mu.Lock()
	f.created = opts
	f.mu.Unlock()
	reply(&conversation.Conversation{Kind: kind}, nil)
}

func (f *fakeSession) Forward(_, _ uuid.UUID, reply session.Reply) {
	f.record("forward")
	reply(nil, chat_errors.ErrNotFound)
}

func (f *fakeSession) Search(query string, reply session.Reply) {
	f.record("search")
	reply([]message.Message{{Content: query}}, nil)
}

func (f *fakeSession) Media(kind message.MediaKind, reply session.Reply) {
	f.record("media")
	reply([]message.Message{}, nil)
}

func (f *fakeSession) Translate(text, lang string, reply session.Reply) {
	f.record("translate")
	reply(lang+":"+text, nil)
}

func (f *fakeSession) Summarize(reply session.Reply) {
	f.record("summarize")
	reply("summary", nil)
}
