package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb    *redis.Client
	window time.Duration
}

// NewRedisStore keeps the ledger in Redis so several broker processes can
// share one report count per identity.
//
// key layout:
//
//	zset: mod:reports:{reported}  -> member reporter, score unix time
//	hash: mod:reasons:{reported}  -> reporter -> reason
func NewRedisStore(rdb *redis.Client, window time.Duration) Store {
	return &redisStore{rdb: rdb, window: window}
}

func reportsKey(reported string) string {
	return fmt.Sprintf("mod:reports:%s", reported)
}

func reasonsKey(reported string) string {
	return fmt.Sprintf("mod:reasons:%s", reported)
}

func (s *redisStore) Record(ctx context.Context, reporter, reported, reason string) (int, bool, error) {
	now := time.Now()
	key := reportsKey(reported)

	// age out records beyond the window before counting
	cutoff := fmt.Sprintf("%d", now.Add(-s.window).Unix())
	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return 0, false, err
	}

	err := s.rdb.ZScore(ctx, key, reporter).Err()
	if err == nil {
		n, err := s.rdb.ZCard(ctx, key).Result()
		return int(n), true, err
	}
	if err != redis.Nil {
		return 0, false, err
	}

	p := s.rdb.Pipeline()
	p.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: reporter})
	p.HSet(ctx, reasonsKey(reported), reporter, reason)
	p.Expire(ctx, key, s.window)
	p.Expire(ctx, reasonsKey(reported), s.window)
	card := p.ZCard(ctx, key)
	if _, err := p.Exec(ctx); err != nil {
		return 0, false, err
	}
	return int(card.Val()), false, nil
}
