package repository

import (
	"codequest_admin/internal/model"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// LeaderboardCache mirrors leaderboard scores into a Redis sorted set so
// the top of the board can be read without scanning Firestore.
type LeaderboardCache struct {
	Redis *redis.Client
	Key   string
}

func NewLeaderboardCache(rdb *redis.Client, key string) *LeaderboardCache {
	return &LeaderboardCache{Redis: rdb, Key: key}
}

func (c *LeaderboardCache) namesKey() string {
	return c.Key + ":names"
}

func (c *LeaderboardCache) Upsert(ctx context.Context, entry model.LeaderboardEntry) error {
	pipe := c.Redis.TxPipeline()
	pipe.ZAdd(ctx, c.Key, &redis.Z{Score: float64(entry.Score), Member: entry.UserID})
	pipe.HSet(ctx, c.namesKey(), entry.UserID, entry.Username)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache leaderboard entry %s: %w", entry.UserID, err)
	}
	return nil
}

func (c *LeaderboardCache) Remove(ctx context.Context, userID string) error {
	pipe := c.Redis.TxPipeline()
	pipe.ZRem(ctx, c.Key, userID)
	pipe.HDel(ctx, c.namesKey(), userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the n best entries, highest score first.
func (c *LeaderboardCache) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := c.Redis.ZRevRangeWithScores(ctx, c.Key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard cache: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = fmt.Sprint(z.Member)
	}
	names, err := c.Redis.HMGet(ctx, c.namesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard names: %w", err)
	}

	entries := make([]model.LeaderboardEntry, len(zs))
	for i, z := range zs {
		entries[i] = model.LeaderboardEntry{UserID: ids[i], Score: int(z.Score)}
		if name, ok := names[i].(string); ok {
			entries[i].Username = name
		}
	}
	return entries, nil
}
