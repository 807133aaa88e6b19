package identity

import (
	"context"

	"chatcore/internal/domain/principal"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Profiles interface {
	GetProfiles(ctx context.Context, ids []uuid.UUID) ([]principal.Profile, error)
	GetExternalParties(ctx context.Context, ids []uuid.UUID) ([]principal.ExternalParty, error)
}

type Cache interface {
	GetPrincipals(ctx context.Context, refs []principal.Ref) (map[principal.Ref]principal.Principal, error)
	SetPrincipals(ctx context.Context, ps []principal.Principal) error
}

// Directory resolves display names and avatars, reading through a cache.
// Principals with no profile get the default name of their kind.
type Directory struct {
	profiles Profiles
	cache    Cache
	log      *logger.Logger
}

func NewDirectory(profiles Profiles, cache Cache, log *logger.Logger) *Directory {
	return &Directory{profiles: profiles, cache: cache, log: log}
}

func (d *Directory) Resolve(ctx context.Context, refs []principal.Ref) (map[principal.Ref]principal.Principal, error) {
	out := make(map[principal.Ref]principal.Principal, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	if d.cache != nil {
		cached, err := d.cache.GetPrincipals(ctx, refs)
		if err != nil {
			d.log.Warn("principal cache read failed", zap.Error(err))
		}
		for ref, p := range cached {
			out[ref] = p
		}
	}

	var users, externals []uuid.UUID
	for _, ref := range refs {
		if _, ok := out[ref]; ok {
			continue
		}
		if ref.Kind == principal.KindExternal {
			externals = append(externals, ref.ID)
		} else {
			users = append(users, ref.ID)
		}
	}
	if len(users) == 0 && len(externals) == 0 {
		return out, nil
	}

	var userPs, externalPs []principal.Principal
	g, gctx := errgroup.WithContext(ctx)
	if len(users) > 0 {
		g.Go(func() error {
			profiles, err := d.profiles.GetProfiles(gctx, users)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				v := principal.Principal{Ref: principal.User(p.ID), DisplayName: p.FullName}
				if p.AvatarURL != nil {
					v.AvatarURL = *p.AvatarURL
				}
				userPs = append(userPs, v)
			}
			return nil
		})
	}
	if len(externals) > 0 {
		g.Go(func() error {
			parties, err := d.profiles.GetExternalParties(gctx, externals)
			if err != nil {
				return err
			}
			for _, p := range parties {
				externalPs = append(externalPs, principal.Principal{Ref: principal.External(p.ID), DisplayName: p.Name})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	fetched := append(userPs, externalPs...)

	for _, p := range fetched {
		if p.DisplayName == "" {
			p.DisplayName = principal.DefaultName(p.Kind)
		}
		out[p.Ref] = p
	}
	if d.cache != nil && len(fetched) > 0 {
		if err := d.cache.SetPrincipals(ctx, fetched); err != nil {
			d.log.Warn("principal cache write failed", zap.Error(err))
		}
	}

	for _, ref := range refs {
		if _, ok := out[ref]; !ok {
			out[ref] = principal.Principal{Ref: ref, DisplayName: principal.DefaultName(ref.Kind)}
		}
	}
	return out, nil
}
