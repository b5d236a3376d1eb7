package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func Test_MemoryStore_CountAndDedup(t *testing.T) {
	s := NewMemoryStore(24 * time.Hour)
	ctx := context.Background()

	count, dup, err := s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, count)

	// same ordered pair again -> duplicate, count unchanged
	count, dup, err = s.Record(ctx, "rita", "X", "abuse again")
	assert.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, count)

	count, dup, err = s.Record(ctx, "rob", "X", "spam")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 2, count)

	// the reverse direction is a different record
	count, dup, err = s.Record(ctx, "X", "rita", "retaliation")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, count)
}

func Test_MemoryStore_WindowExpiry(t *testing.T) {
	s := NewMemoryStore(24 * time.Hour).(*memStore)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }

	_, _, err := s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)

	// a day later the old record no longer counts or dedups
	s.now = func() time.Time { return base.Add(25 * time.Hour) }
	count, dup, err := s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, count)
}

func Test_RedisStore_CountAndDedup(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, 24*time.Hour)
	ctx := context.Background()

	count, dup, err := s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, count)

	count, dup, err = s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, count)

	count, dup, err = s.Record(ctx, "rob", "X", "spam")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 2, count)

	count, _, err = s.Record(ctx, "ray", "X", "spam")
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.True(t, mr.Exists("mod:reports:X"))
	assert.True(t, mr.Exists("mod:reasons:X"))
}

func Test_RedisStore_WindowTTL(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	_, _, err = s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.True(t, mr.Exists("mod:reports:X"))

	// key carries the window as TTL; after it passes the ledger is clean
	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("mod:reports:X"))

	count, dup, err := s.Record(ctx, "rita", "X", "abuse")
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, count)
}
