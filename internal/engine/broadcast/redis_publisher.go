package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const ChannelMatchBroadcast = "match_updates_broadcast"

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Payload padrão para o WS do match-service
type WSUpdate struct {
	MatchID string      `json:"matchId"`
	Kind    string      `json:"kind"` // tick | odds | settlement
	Payload interface{} `json:"payload"`
}
