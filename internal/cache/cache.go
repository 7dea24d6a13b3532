package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finwise/backend/internal/logger"
)

const leaderboardKey = "leaderboard:points"

// Cache wraps Redis for the two hot paths: the points leaderboard (a sorted
// set) and short-lived JSON snapshots like simulator market quotes. Every
// read path has a database fallback; Redis being down degrades latency,
// not correctness.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{
		client: client,
		log:    logger.Default().WithComponent("cache"),
	}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns a cached value and whether it was present. Errors are logged
// and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache get failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache set failed", map[string]interface{}{"key": key, "error": err.Error()})
		return err
	}
	return nil
}

// SetLeaderboardScore records a user's points total in the sorted set.
func (c *Cache) SetLeaderboardScore(ctx context.Context, userID string, points int) error {
	return c.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(points),
		Member: userID,
	}).Err()
}

// RankedUser is one leaderboard row out of Redis.
type RankedUser struct {
	UserID string
	Points int
}

// TopScores returns the highest-scoring user IDs, best first. An empty
// result may mean the set was never populated; callers fall back to the
// database in that case.
func (c *Cache) TopScores(ctx context.Context, limit int) ([]RankedUser, error) {
	entries, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedUser, 0, len(entries))
	for _, e := range entries {
		id, ok := e.Member.(string)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedUser{UserID: id, Points: int(e.Score)})
	}
	return ranked, nil
}

// RemoveFromLeaderboard drops a user, e.g. after role promotion takes them
// off the public board.
func (c *Cache) RemoveFromLeaderboard(ctx context.Context, userID string) error {
	return c.client.ZRem(ctx, leaderboardKey, userID).Err()
}
