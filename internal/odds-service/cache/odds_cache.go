package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/match-bet-platform/internal/odds"
)

// Cache guarda odds personalizadas por (bet, apostador) com TTL curto
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func keyOdds(betID, userID string) string { return "odds:bet:" + betID + ":user:" + userID }

func (c *Cache) GetOdds(ctx context.Context, betID, userID string, dst *odds.Result) (bool, error) {
	b, err := c.R.Get(ctx, keyOdds(betID, userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// SetOdds não guarda resultados de fallback
func (c *Cache) SetOdds(ctx context.Context, betID, userID string, r odds.Result) error {
	if r.Fallback {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyOdds(betID, userID), b, c.TTL).Err()
}

// InvalidateBet remove o cache de todos os apostadores de uma bet (após re-precificação)
func (c *Cache) InvalidateBet(ctx context.Context, betID string) error {
	iter := c.R.Scan(ctx, 0, "odds:bet:"+betID+":user:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.R.Del(ctx, keys...).Err()
}
