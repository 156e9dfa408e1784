package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	presenceConnsPrefix    = "presence:conns:"    // set of live connection ids per user
	presenceLastSeenPrefix = "presence:lastseen:" // unix seconds of the last disconnect
	presenceOnlineSet      = "presence:online"
)

// PresenceStore tracks live connections across every server instance, so a
// user stays online while any instance still holds one of their sockets.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline records connID for userID and reports whether it is the
// user's first live connection.
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID, connID string) (bool, error) {
	key := presenceConnsPrefix + userID.String()

	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, key, connID)
	pipe.Expire(ctx, key, p.ttl)
	card := pipe.SCard(ctx, key)
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return card.Val() == 1, nil
}

// SetOffline drops connID and reports whether the user has no connection
// left on any instance.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID, connID string, at time.Time) (bool, error) {
	key := presenceConnsPrefix + userID.String()

	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, key, connID)
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if card.Val() > 0 {
		return false, nil
	}

	pipe = p.client.Pipeline()
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	pipe.Set(ctx, presenceLastSeenPrefix+userID.String(), at.Unix(), p.ttl*7)
	_, err := pipe.Exec(ctx)
	return true, err
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID.String()).Result()
}

// LastSeen returns the last disconnect time, or the zero time if unknown.
func (p *PresenceStore) LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	val, err := p.client.Get(ctx, presenceLastSeenPrefix+userID.String()).Result()
	if err == goredis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(secs, 0).UTC(), nil
}
