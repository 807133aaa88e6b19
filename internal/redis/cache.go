package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatcore/internal/domain/principal"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - principal:{kind}:{id} - display metadata, 5m TTL

// CacheStore caches principal display metadata resolved from the directory.
type CacheStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCacheStore(client *goredis.Client, ttl time.Duration) *CacheStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &CacheStore{client: client, ttl: ttl}
}

func principalKey(ref principal.Ref) string {
	return fmt.Sprintf("principal:%s:%s", ref.Kind, ref.ID)
}

// GetPrincipals returns the cached entries among refs. Misses are absent.
func (c *CacheStore) GetPrincipals(ctx context.Context, refs []principal.Ref) (map[principal.Ref]principal.Principal, error) {
	out := make(map[principal.Ref]principal.Principal, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = principalKey(ref)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p principal.Principal
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			continue
		}
		out[refs[i]] = p
	}
	return out, nil
}

func (c *CacheStore) SetPrincipals(ctx context.Context, ps []principal.Principal) error {
	if len(ps) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, p := range ps {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, principalKey(p.Ref), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *CacheStore) InvalidatePrincipal(ctx context.Context, ref principal.Ref) error {
	return c.client.Del(ctx, principalKey(ref)).Err()
}
