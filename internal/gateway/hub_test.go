package gateway

import (
	"testing"
	"time"

	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter_SlidingWindow(t *testing.T) {
	l := NewConnectionLimiter(2)
	who := principal.User(uuid.New())
	other := principal.External(uuid.New())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow(who, now))
	assert.True(t, l.Allow(who, now.Add(10*time.Second)))
	assert.False(t, l.Allow(who, now.Add(20*time.Second)))
	assert.True(t, l.Allow(other, now.Add(20*time.Second)))

	assert.True(t, l.Allow(who, now.Add(61*time.Second)))
}

func TestConnectionLimiter_CleanupDropsIdlePrincipals(t *testing.T) {
	l := NewConnectionLimiter(2)
	who := principal.User(uuid.New())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	l.Allow(who, now)
	l.cleanup(now.Add(11 * time.Minute))

	assert.Empty(t, l.seen)
}
