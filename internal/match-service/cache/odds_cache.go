package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-match-engine/pkg/contracts/events"
)

// OddsCache encapsula o cache da cotação corrente de cada partida no Redis.
type OddsCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewOddsCache(c *redis.Client, ttl time.Duration) *OddsCache {
	return &OddsCache{Client: c, TTL: ttl}
}

// key gera a chave Redis para a cotação corrente de uma partida
func key(matchID string) string { return "odds:current:" + matchID }

// SetCurrent armazena a cotação corrente com TTL definido. Snapshots não são
// mutados: cada set substitui o anterior por inteiro.
func (c *OddsCache) SetCurrent(ctx context.Context, e events.OddsUpdate) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(e.MatchID), b, c.TTL).Err()
}

// GetCurrent devolve a cotação corrente, se presente.
func (c *OddsCache) GetCurrent(ctx context.Context, matchID string) (events.OddsUpdate, bool, error) {
	b, err := c.Client.Get(ctx, key(matchID)).Bytes()
	if err == redis.Nil {
		return events.OddsUpdate{}, false, nil
	}
	if err != nil {
		return events.OddsUpdate{}, false, err
	}
	var out events.OddsUpdate
	if err := json.Unmarshal(b, &out); err != nil {
		return events.OddsUpdate{}, false, err
	}
	return out, true, nil
}
