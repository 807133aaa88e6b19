package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/events"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes for presence
const (
	presenceKeyPrefix    = "presence:conversation:" // Hash of session id -> entry
	presenceHeartbeatKey = "presence:heartbeat:"    // Sorted set of session id by last heartbeat
)

// PresenceStore keeps the attached sessions of every conversation scope and
// publishes the full membership whenever it changes.
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
	clock     func() time.Time
}

func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PresenceStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
		clock:     time.Now,
	}
}

// Join attaches a session to the conversation scope.
func (p *PresenceStore) Join(ctx context.Context, conversationID uuid.UUID, sessionID string, who principal.Ref) error {
	now := p.clock()
	entry := events.PresenceEntry{Principal: who, SessionID: sessionID, LastSeen: now}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := presenceKeyPrefix + conversationID.String()
	hbKey := presenceHeartbeatKey + conversationID.String()

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, sessionID, data)
	pipe.ZAdd(ctx, hbKey, goredis.Z{Score: float64(now.Unix()), Member: sessionID})
	pipe.Expire(ctx, key, p.ttl*4)
	pipe.Expire(ctx, hbKey, p.ttl*4)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishSnapshot(ctx, conversationID)
}

// Leave detaches a session from the conversation scope.
func (p *PresenceStore) Leave(ctx context.Context, conversationID uuid.UUID, sessionID string) error {
	pipe := p.client.Pipeline()
	pipe.HDel(ctx, presenceKeyPrefix+conversationID.String(), sessionID)
	pipe.ZRem(ctx, presenceHeartbeatKey+conversationID.String(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishSnapshot(ctx, conversationID)
}

// Heartbeat refreshes the session and evicts sessions that stopped beating.
// The entry is rewritten on every beat so a session swept while it was late
// comes back. A snapshot is published only when membership changed.
func (p *PresenceStore) Heartbeat(ctx context.Context, conversationID uuid.UUID, sessionID string, who principal.Ref) error {
	now := p.clock()
	data, err := json.Marshal(events.PresenceEntry{Principal: who, SessionID: sessionID, LastSeen: now})
	if err != nil {
		return err
	}
	key := presenceKeyPrefix + conversationID.String()
	hbKey := presenceHeartbeatKey + conversationID.String()

	pipe := p.client.Pipeline()
	added := pipe.HSet(ctx, key, sessionID, data)
	pipe.ZAdd(ctx, hbKey, goredis.Z{Score: float64(now.Unix()), Member: sessionID})
	pipe.Expire(ctx, key, p.ttl*4)
	pipe.Expire(ctx, hbKey, p.ttl*4)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	rejoined := added.Val() > 0

	threshold := now.Add(-p.ttl).Unix()
	stale, err := p.client.ZRangeByScore(ctx, hbKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		if rejoined {
			return p.publishSnapshot(ctx, conversationID)
		}
		return nil
	}

	members := make([]interface{}, len(stale))
	for i, s := range stale {
		members[i] = s
	}
	pipe = p.client.Pipeline()
	pipe.HDel(ctx, key, stale...)
	pipe.ZRem(ctx, hbKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishSnapshot(ctx, conversationID)
}

// Snapshot returns the current membership ordered by principal.
func (p *PresenceStore) Snapshot(ctx context.Context, conversationID uuid.UUID) ([]events.PresenceEntry, error) {
	data, err := p.client.HGetAll(ctx, presenceKeyPrefix+conversationID.String()).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]events.PresenceEntry, 0, len(data))
	for _, raw := range data {
		var e events.PresenceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Principal.ID != entries[j].Principal.ID {
			return entries[i].Principal.String() < entries[j].Principal.String()
		}
		return entries[i].SessionID < entries[j].SessionID
	})
	return entries, nil
}

func (p *PresenceStore) publishSnapshot(ctx context.Context, conversationID uuid.UUID) error {
	if p.publisher == nil {
		return nil
	}
	entries, err := p.Snapshot(ctx, conversationID)
	if err != nil {
		return err
	}
	return p.publisher.PublishEvent(ctx, &events.PresenceSync{ConversationID: conversationID, Entries: entries})
}
