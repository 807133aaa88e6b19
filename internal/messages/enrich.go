package messages

import (
	"context"

	"chatcore/internal/domain/principal"

	"go.uber.org/zap"
)

// enrich fills the sender display fields. Unknown senders get the default
// name now and are resolved in the background.
func (s *Synchronizer) enrich(it Item) Item {
	ref := it.Sender()
	if p, ok := s.names[ref]; ok {
		it.SenderName = p.DisplayName
		it.SenderAvatar = p.AvatarURL
		return it
	}
	it.SenderName = principal.DefaultName(ref.Kind)
	it.SenderAvatar = ""
	s.resolve(ref)
	return it
}

func (s *Synchronizer) remember(names map[principal.Ref]principal.Principal) {
	for ref, p := range names {
		s.names[ref] = p
	}
}

func (s *Synchronizer) resolve(ref principal.Ref) {
	if s.dir == nil || s.resolving[ref] {
		return
	}
	s.resolving[ref] = true
	s.sched.Go(func(ctx context.Context) func() {
		names, err := s.dir.Resolve(ctx, []principal.Ref{ref})
		return func() {
			delete(s.resolving, ref)
			if err != nil {
				s.log.Debug("sender lookup failed", zap.String("principal", ref.String()), zap.Error(err))
				return
			}
			p, ok := names[ref]
			if !ok {
				return
			}
			s.names[ref] = p
			for i := range s.items {
				if s.items[i].Sender() == ref {
					s.items[i].SenderName = p.DisplayName
					s.items[i].SenderAvatar = p.AvatarURL
				}
			}
			for _, pw := range s.pending {
				if pw.item.Sender() == ref {
					pw.item.SenderName = p.DisplayName
					pw.item.SenderAvatar = p.AvatarURL
				}
			}
		}
	})
}
