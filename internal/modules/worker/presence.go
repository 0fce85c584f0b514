// README: Worker online presence backed by a Redis set plus last-seen hash.
package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"wasil/internal/types"
)

const (
	onlineSetKey    = "presence:workers:online"
	lastSeenHashKey = "presence:workers:last_seen"
)

type Presence struct {
	redis *redis.Client
}

func NewPresence(redis *redis.Client) *Presence {
	return &Presence{redis: redis}
}

func (p *Presence) SetOnline(ctx context.Context, id types.ID) error {
	pipe := p.redis.Pipeline()
	pipe.SAdd(ctx, onlineSetKey, string(id))
	pipe.HSet(ctx, lastSeenHashKey, string(id), time.Now().UTC().Format(time.RFC3339))
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) SetOffline(ctx context.Context, id types.ID) error {
	return p.redis.SRem(ctx, onlineSetKey, string(id)).Err()
}

func (p *Presence) IsOnline(ctx context.Context, id types.ID) (bool, error) {
	return p.redis.SIsMember(ctx, onlineSetKey, string(id)).Result()
}

func (p *Presence) OnlineWorkerIDs(ctx context.Context) ([]types.ID, error) {
	members, err := p.redis.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}
