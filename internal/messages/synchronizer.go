// Package messages owns the ordered message list of the active conversation
// and reconciles optimistic writes with the realtime feed.
package messages

import (
	"context"
	"sort"
	"strings"
	"time"

	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	"chatcore/internal/metrics"
	"chatcore/internal/reactions"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the durable message log.
type Store interface {
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	Create(ctx context.Context, m *message.Message) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	UpdateReactions(ctx context.Context, id uuid.UUID, r message.Reactions) error
}

// Directory resolves display metadata for senders.
type Directory interface {
	Resolve(ctx context.Context, refs []principal.Ref) (map[principal.Ref]principal.Principal, error)
}

// Hooks let the session route side effects to the other components.
type Hooks struct {
	// Loaded runs after a history load for the active conversation applied.
	Loaded func(conversationID uuid.UUID)
	// RemoteInserted runs for each newly shown message from someone else.
	RemoteInserted func(m message.Message)
	// Applied runs for every confirmed new message, active or not.
	Applied func(m message.Message)
}

// Synchronizer must only be used from the loop.
type Synchronizer struct {
	sched loop.Scheduler
	store Store
	dir   Directory
	self  principal.Principal
	log   *logger.Logger
	hooks Hooks

	active  uuid.UUID
	epoch   uint64
	items   []Item
	loading bool
	loadErr error

	pending   map[uuid.UUID]*pendingWrite
	names     map[principal.Ref]principal.Principal
	resolving map[principal.Ref]bool
}

func NewSynchronizer(sched loop.Scheduler, store Store, dir Directory, self principal.Principal, hooks Hooks, log *logger.Logger) *Synchronizer {
	return &Synchronizer{
		sched:     sched,
		store:     store,
		dir:       dir,
		self:      self,
		log:       log,
		hooks:     hooks,
		pending:   make(map[uuid.UUID]*pendingWrite),
		names:     map[principal.Ref]principal.Principal{self.Ref: self},
		resolving: make(map[principal.Ref]bool),
	}
}

func (s *Synchronizer) Active() uuid.UUID { return s.active }

func (s *Synchronizer) Loading() bool { return s.loading }

// LoadError is the error of the last history load, nil once one succeeds.
func (s *Synchronizer) LoadError() error { return s.loadErr }

// Items returns a copy of the active list in display order.
func (s *Synchronizer) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Load makes conversationID active and replaces the list with its history.
// A load that resolves after another Load or Close is discarded.
func (s *Synchronizer) Load(conversationID uuid.UUID) {
	s.epoch++
	epoch := s.epoch
	s.active = conversationID
	s.items = nil
	s.loadErr = nil
	s.loading = true

	s.sched.Go(func(ctx context.Context) func() {
		msgs, err := s.store.ListByConversation(ctx, conversationID)
		var names map[principal.Ref]principal.Principal
		if err == nil && s.dir != nil {
			var dirErr error
			names, dirErr = s.dir.Resolve(ctx, sendersOf(msgs))
			if dirErr != nil {
				names = nil
			}
		}
		return func() {
			if epoch != s.epoch || conversationID != s.active {
				metrics.HistoryLoads.WithLabelValues("stale").Inc()
				return
			}
			s.loading = false
			if err != nil {
				metrics.HistoryLoads.WithLabelValues("error").Inc()
				s.log.Warn("failed to load message history",
					zap.String("conversation_id", conversationID.String()),
					zap.Error(err))
				s.loadErr = err
				s.items = nil
				return
			}
			metrics.HistoryLoads.WithLabelValues("ok").Inc()
			s.remember(names)
			s.items = s.merge(conversationID, msgs)
			if s.hooks.Loaded != nil {
				s.hooks.Loaded(conversationID)
			}
		}
	})
}

// Reload loads the active conversation again, e.g. after a reconnect.
func (s *Synchronizer) Reload() {
	if s.active != uuid.Nil {
		s.Load(s.active)
	}
}

// Close deactivates the list. Pending writes stay tracked.
func (s *Synchronizer) Close() {
	s.epoch++
	s.active = uuid.Nil
	s.items = nil
	s.loading = false
	s.loadErr = nil
}

// merge builds the display list from loaded history plus this session's
// unconfirmed writes to the conversation.
func (s *Synchronizer) merge(conversationID uuid.UUID, msgs []message.Message) []Item {
	items := make([]Item, 0, len(msgs))
	seen := make(map[uuid.UUID]bool, len(msgs))
	drafts := make(map[uuid.UUID]bool)
	for _, m := range msgs {
		if m.IsDeleted || seen[m.ID] {
			continue
		}
		if m.ClientMessageID.Valid {
			if p, ok := s.pending[m.ClientMessageID.UUID]; ok {
				if p.cancelled {
					continue
				}
				// confirmed while we were away
				if !p.inFlight {
					delete(s.pending, m.ClientMessageID.UUID)
				}
				drafts[m.ClientMessageID.UUID] = true
			}
		}
		seen[m.ID] = true
		items = append(items, s.enrich(Item{Message: m, State: Sent}))
	}
	for id, p := range s.pending {
		if p.item.ConversationID != conversationID || p.cancelled || drafts[id] {
			continue
		}
		items = append(items, p.item)
	}
	sortItems(items)
	return items
}

// Send appends an optimistic message and issues its durable write. Write
// failures are recorded on the item, never returned.
func (s *Synchronizer) Send(conversationID uuid.UUID, d Draft) (uuid.UUID, error) {
	if conversationID == uuid.Nil || conversationID != s.active {
		return uuid.Nil, chat_errors.ErrNotActive
	}
	content := strings.TrimSpace(d.Content)
	if content == "" && d.Attachment == nil {
		return uuid.Nil, chat_errors.ErrInvalidInput
	}
	if d.Attachment != nil && (d.Attachment.URL == "" || !d.Attachment.Source.Valid()) {
		return uuid.Nil, chat_errors.ErrInvalidInput
	}
	typ := d.Type
	if typ == "" {
		typ = message.TypeText
		if d.Attachment != nil {
			typ = message.TypeFromMime(d.Attachment.MimeType)
		}
	}
	if !typ.Valid() {
		return uuid.Nil, chat_errors.ErrInvalidInput
	}

	draftID, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	m := message.Message{
		ID:              draftID,
		ConversationID:  conversationID,
		SenderID:        s.self.ID,
		SenderKind:      s.self.Kind,
		ClientMessageID: uuid.NullUUID{UUID: draftID, Valid: true},
		Content:         content,
		Type:            typ,
		ReplyToID:       d.ReplyToID,
		ForwardedFromID: d.ForwardedFromID,
		Reactions:       message.Reactions{},
		CreatedAt:       s.sched.Now(),
	}
	m.SetAttachment(d.Attachment)

	p := &pendingWrite{item: s.enrich(Item{Message: m, DraftID: draftID, State: Pending})}
	s.pending[draftID] = p
	s.insert(p.item)
	s.write(p)
	return draftID, nil
}

// Retry re-issues a failed optimistic write.
func (s *Synchronizer) Retry(draftID uuid.UUID) error {
	p, ok := s.pending[draftID]
	if !ok || p.cancelled {
		return chat_errors.ErrNotFound
	}
	if p.inFlight || p.item.State != Failed {
		return chat_errors.ErrConflict
	}
	metrics.OptimisticSends.WithLabelValues("retried").Inc()
	p.item.State = Pending
	p.item.Error = ""
	if i := s.indexOf(draftID); i >= 0 {
		s.items[i].State = Pending
		s.items[i].Error = ""
	}
	s.write(p)
	return nil
}

func (s *Synchronizer) write(p *pendingWrite) {
	p.inFlight = true
	draftID := p.item.DraftID
	payload := p.item.Message
	// the store assigns identity and time
	payload.ID = uuid.Nil
	payload.CreatedAt = time.Time{}

	s.sched.Go(func(ctx context.Context) func() {
		m := payload
		err := s.store.Create(ctx, &m)
		return func() { s.finishWrite(draftID, m, err) }
	})
}

func (s *Synchronizer) finishWrite(draftID uuid.UUID, m message.Message, err error) {
	p, ok := s.pending[draftID]
	if ok {
		p.inFlight = false
	}

	if err != nil {
		metrics.OptimisticSends.WithLabelValues("failed").Inc()
		if !ok {
			return
		}
		if p.cancelled {
			delete(s.pending, draftID)
			return
		}
		s.log.Warn("optimistic write failed", zap.String("draft_id", draftID.String()), zap.Error(err))
		p.item.State = Failed
		p.item.Error = err.Error()
		if i := s.indexOf(draftID); i >= 0 {
			s.items[i].State = Failed
			s.items[i].Error = p.item.Error
		}
		return
	}

	metrics.OptimisticSends.WithLabelValues("confirmed").Inc()
	if !ok {
		// the echo already reconciled it
		s.replace(m, false)
		return
	}
	delete(s.pending, draftID)
	if p.cancelled {
		s.softDelete(m.ID)
		return
	}
	if s.hooks.Applied != nil {
		s.hooks.Applied(m)
	}
	s.reconcile(draftID, m)
}

// reconcile swaps the optimistic item for the confirmed message in place.
func (s *Synchronizer) reconcile(draftID uuid.UUID, m message.Message) {
	if m.ConversationID != s.active {
		return
	}
	if i := s.indexOf(draftID); i >= 0 {
		if j := s.indexOf(m.ID); j >= 0 && j != i {
			s.removeAt(j)
			i = s.indexOf(draftID)
		}
		s.items[i] = s.enrich(Item{Message: m, State: Sent})
		sortItems(s.items)
		return
	}
	s.replace(m, true)
}

// replace updates the item with m's identifier, keeping enrichment.
func (s *Synchronizer) replace(m message.Message, insertIfMissing bool) {
	if m.ConversationID != s.active {
		return
	}
	if i := s.indexOf(m.ID); i >= 0 {
		s.items[i] = s.enrich(Item{Message: m, State: Sent, Error: s.items[i].Error})
		sortItems(s.items)
		return
	}
	if insertIfMissing {
		s.insert(s.enrich(Item{Message: m, State: Sent}))
	}
}

// ApplyRemoteInsert merges a message from the realtime feed. Echoes of this
// session's own writes reconcile by draft id; duplicates are dropped.
// Messages sent by the same principal from another session (a second tab)
// are shown like any other insert but never count as unread.
func (s *Synchronizer) ApplyRemoteInsert(m message.Message) {
	if m.ConversationID != s.active || m.IsDeleted {
		return
	}
	if m.ClientMessageID.Valid {
		if p, ok := s.pending[m.ClientMessageID.UUID]; ok {
			if p.cancelled {
				return
			}
			delete(s.pending, m.ClientMessageID.UUID)
			if s.hooks.Applied != nil {
				s.hooks.Applied(m)
			}
			s.reconcile(m.ClientMessageID.UUID, m)
			return
		}
	}
	if s.indexOf(m.ID) >= 0 {
		return
	}
	s.insert(s.enrich(Item{Message: m, State: Sent}))
	if s.hooks.Applied != nil {
		s.hooks.Applied(m)
	}
	// our own messages from other sessions are shown but never counted
	if m.Sender() != s.self.Ref && s.hooks.RemoteInserted != nil {
		s.hooks.RemoteInserted(m)
	}
}

// ApplyRemoteUpdate covers edits, reaction changes and soft deletes. An
// update for a message not in the list is ignored.
func (s *Synchronizer) ApplyRemoteUpdate(m message.Message) {
	if m.ConversationID != s.active {
		return
	}
	i := s.indexOf(m.ID)
	if i < 0 {
		return
	}
	if m.IsDeleted {
		s.removeAt(i)
		return
	}
	s.replace(m, false)
}

// Edit changes the content of one of our confirmed messages, locally first.
// Editing a failed draft rewrites what Retry will send.
func (s *Synchronizer) Edit(id uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat_errors.ErrInvalidInput
	}
	i := s.indexOf(id)
	if i < 0 {
		return chat_errors.ErrNotFound
	}
	it := s.items[i]
	if it.Sender() != s.self.Ref {
		return chat_errors.ErrForbidden
	}
	switch it.State {
	case Pending:
		return chat_errors.ErrConflict
	case Failed:
		if p, ok := s.pending[it.DraftID]; ok {
			p.item.Content = content
		}
		s.items[i].Content = content
		return nil
	}

	prev := it.Message
	now := s.sched.Now()
	s.items[i].Content = content
	s.items[i].IsEdited = true
	s.items[i].EditedAt = &now
	s.items[i].Error = ""

	s.sched.Go(func(ctx context.Context) func() {
		err := s.store.UpdateContent(ctx, id, content, now)
		if err == nil {
			return nil
		}
		return func() {
			s.log.Warn("edit failed", zap.String("message_id", id.String()), zap.Error(err))
			if j := s.indexOf(id); j >= 0 && s.items[j].Content == content {
				s.items[j].Message = prev
				s.items[j].Error = "edit failed: " + err.Error()
			}
		}
	})
	return nil
}

// Delete removes one of our messages from the list right away and persists
// a soft delete. Deleting an unconfirmed draft cancels it.
func (s *Synchronizer) Delete(id uuid.UUID) error {
	i := s.indexOf(id)
	if i < 0 {
		return chat_errors.ErrNotFound
	}
	it := s.items[i]
	if it.Sender() != s.self.Ref {
		return chat_errors.ErrForbidden
	}
	s.removeAt(i)

	if it.DraftID != uuid.Nil {
		if p, ok := s.pending[it.DraftID]; ok {
			if p.inFlight {
				p.cancelled = true
			} else {
				delete(s.pending, it.DraftID)
			}
		}
		return nil
	}
	s.softDelete(id)
	return nil
}

func (s *Synchronizer) softDelete(id uuid.UUID) {
	conversationID := s.active
	s.sched.Go(func(ctx context.Context) func() {
		err := s.store.SoftDelete(ctx, id)
		if err == nil {
			return nil
		}
		return func() {
			s.log.Warn("delete failed", zap.String("message_id", id.String()), zap.Error(err))
			if conversationID == s.active {
				// show it again so the user can retry
				s.Reload()
			}
		}
	})
}

// ToggleReaction flips our reaction on a confirmed message and persists the
// whole map.
func (s *Synchronizer) ToggleReaction(id uuid.UUID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return chat_errors.ErrInvalidInput
	}
	i := s.indexOf(id)
	if i < 0 {
		return chat_errors.ErrNotFound
	}
	if s.items[i].State != Sent {
		return chat_errors.ErrConflict
	}
	next := reactions.Toggle(s.items[i].Reactions, emoji, s.self.ID.String())
	s.items[i].Reactions = next

	s.sched.Go(func(ctx context.Context) func() {
		err := s.store.UpdateReactions(ctx, id, next)
		if err == nil {
			return nil
		}
		return func() {
			s.log.Warn("reaction update failed", zap.String("message_id", id.String()), zap.Error(err))
			if j := s.indexOf(id); j >= 0 {
				s.items[j].Error = "reaction failed: " + err.Error()
			}
		}
	})
	return nil
}

// Find returns the item with the given server or draft id.
func (s *Synchronizer) Find(id uuid.UUID) (Item, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

func (s *Synchronizer) indexOf(id uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == id || (s.items[i].DraftID != uuid.Nil && s.items[i].DraftID == id) {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) insert(it Item) {
	i := sort.Search(len(s.items), func(i int) bool {
		return it.Before(s.items[i].Message)
	})
	s.items = append(s.items, Item{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = it
}

func (s *Synchronizer) removeAt(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Before(items[j].Message)
	})
}

func sendersOf(msgs []message.Message) []principal.Ref {
	seen := make(map[principal.Ref]bool)
	var out []principal.Ref
	for _, m := range msgs {
		ref := m.Sender()
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}
