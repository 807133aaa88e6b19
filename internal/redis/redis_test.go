package redis

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Printf("redis container unavailable, integration tests will be skipped: %v", err)
		os.Exit(m.Run())
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		log.Fatalf("failed to parse redis url: %v", err)
	}
	testClient = goredis.NewClient(opts)

	code := m.Run()

	testClient.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func requireRedis(t *testing.T) *goredis.Client {
	t.Helper()
	if testClient == nil {
		t.Skip("redis container not available")
	}
	t.Cleanup(func() {
		require.NoError(t, testClient.FlushDB(context.Background()).Err())
	})
	return testClient
}

func TestPing(t *testing.T) {
	client := requireRedis(t)
	assert.NoError(t, Ping(context.Background(), client))
}

func TestCacheStore(t *testing.T) {
	client := requireRedis(t)
	ctx := context.Background()
	cache := NewCacheStore(client, time.Minute)

	dana := principal.Principal{Ref: principal.User(uuid.New()), DisplayName: "Dana", AvatarURL: "https://cdn/dana.png"}
	acme := principal.Principal{Ref: principal.External(uuid.New()), DisplayName: "Acme Ltd"}
	require.NoError(t, cache.SetPrincipals(ctx, []principal.Principal{dana, acme}))

	missing := principal.User(uuid.New())
	got, err := cache.GetPrincipals(ctx, []principal.Ref{dana.Ref, acme.Ref, missing})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, dana, got[dana.Ref])
	assert.Equal(t, "Acme Ltd", got[acme.Ref].DisplayName)

	ttl, err := client.TTL(ctx, principalKey(dana.Ref)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.InvalidatePrincipal(ctx, dana.Ref))
	got, err = cache.GetPrincipals(ctx, []principal.Ref{dana.Ref})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRateLimiter(t *testing.T) {
	client := requireRedis(t)
	ctx := context.Background()
	limiter := NewRateLimiter(client, RateLimitConfig{
		MessageLimit:  2,
		MessageWindow: time.Minute,
		UpgradeLimit:  1,
		UpgradeWindow: time.Minute,
	})

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowMessage(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}
	res, err := limiter.AllowMessage(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)

	res, err = limiter.AllowMessage(ctx, "user:b")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "limits are per principal")

	res, err = limiter.AllowUpgrade(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = limiter.AllowUpgrade(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

// collector records events delivered by a running hub.
type collector struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *collector) add(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) snapshot() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.evs...)
}

func runHub(t *testing.T, client *goredis.Client) *Hub {
	t.Helper()
	hub := NewHub(client, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func TestPublisherAndHub_RoundTrip(t *testing.T) {
	client := requireRedis(t)
	hub := runHub(t, client)
	pub := NewPublisher(client)
	convID := uuid.New()

	got := &collector{}
	sub, err := hub.Subscribe(events.TypingChannel(convID), got.add, nil)
	require.NoError(t, err)
	defer sub.Close()

	who := principal.User(uuid.New())
	require.Eventually(t, func() bool {
		_ = pub.PublishEvent(context.Background(), &events.TypingBroadcast{
			ConversationID: convID, Principal: who, DisplayName: "Dana", Typing: true, At: time.Now(),
		})
		return len(got.snapshot()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	ev, ok := got.snapshot()[0].(*events.TypingBroadcast)
	require.True(t, ok)
	assert.Equal(t, who, ev.Principal)
	assert.True(t, ev.Typing)
}

func TestPresenceStore(t *testing.T) {
	client := requireRedis(t)
	ctx := context.Background()
	hub := runHub(t, client)
	store := NewPresenceStore(client, NewPublisher(client), 30*time.Second)
	convID := uuid.New()
	base := time.Now()
	store.clock = func() time.Time { return base }

	syncs := &collector{}
	sub, err := hub.Subscribe(events.PresenceChannel(convID), syncs.add, nil)
	require.NoError(t, err)
	defer sub.Close()

	alice, bob := principal.User(uuid.New()), principal.External(uuid.New())
	require.NoError(t, store.Join(ctx, convID, "s-alice", alice))
	require.NoError(t, store.Join(ctx, convID, "s-bob", bob))

	entries, err := store.Snapshot(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	t.Run("heartbeat evicts silent sessions", func(t *testing.T) {
		store.clock = func() time.Time { return base.Add(10 * time.Second) }
		require.NoError(t, store.Heartbeat(ctx, convID, "s-alice", alice))
		entries, err := store.Snapshot(ctx, convID)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "bob is still within the ttl")

		store.clock = func() time.Time { return base.Add(35 * time.Second) }
		require.NoError(t, store.Heartbeat(ctx, convID, "s-alice", alice))
		entries, err = store.Snapshot(ctx, convID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, alice, entries[0].Principal)
	})

	t.Run("late heartbeat brings an evicted session back", func(t *testing.T) {
		// bob was swept above while alice kept beating
		store.clock = func() time.Time { return base.Add(40 * time.Second) }
		require.NoError(t, store.Heartbeat(ctx, convID, "s-bob", bob))

		entries, err := store.Snapshot(ctx, convID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		sessions := []string{entries[0].SessionID, entries[1].SessionID}
		assert.ElementsMatch(t, []string{"s-alice", "s-bob"}, sessions)

		require.Eventually(t, func() bool {
			for _, ev := range syncs.snapshot() {
				if s, ok := ev.(*events.PresenceSync); ok && len(s.Entries) == 2 {
					for _, e := range s.Entries {
						if e.SessionID == "s-bob" && e.LastSeen.Unix() == base.Add(40*time.Second).Unix() {
							return true
						}
					}
				}
			}
			return false
		}, 5*time.Second, 50*time.Millisecond)

		require.NoError(t, store.Leave(ctx, convID, "s-bob"))
	})

	t.Run("leave publishes the remaining membership", func(t *testing.T) {
		require.NoError(t, store.Leave(ctx, convID, "s-alice"))
		entries, err := store.Snapshot(ctx, convID)
		require.NoError(t, err)
		assert.Empty(t, entries)

		require.Eventually(t, func() bool {
			// leaving again republishes once the hub is subscribed
			_ = store.Leave(ctx, convID, "s-alice")
			evs := syncs.snapshot()
			if len(evs) == 0 {
				return false
			}
			last, ok := evs[len(evs)-1].(*events.PresenceSync)
			return ok && len(last.Entries) == 0
		}, 5*time.Second, 50*time.Millisecond)
	})
}
