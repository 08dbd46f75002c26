package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuthCache keeps resolved authorization contexts in Redis so hot paths do
// not hit PostgreSQL for every call. Entries are short-lived and invalidated
// on any role or status mutation; a cache miss or failure is never an error.
type AuthCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAuthCache constructs an AuthCache.
func NewAuthCache(client *redis.Client, ttl time.Duration) *AuthCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AuthCache{client: client, ttl: ttl}
}

func authKey(actorID int64) string {
	return fmt.Sprintf("actors:auth:%d", actorID)
}

// Get returns the cached context for the actor, if present.
func (c *AuthCache) Get(ctx context.Context, actorID int64) (AuthContext, bool) {
	if c == nil || c.client == nil {
		return AuthContext{}, false
	}
	payload, err := c.client.Get(ctx, authKey(actorID)).Bytes()
	if err != nil {
		return AuthContext{}, false
	}
	var auth AuthContext
	if err := json.Unmarshal(payload, &auth); err != nil {
		return AuthContext{}, false
	}
	return auth, true
}

// Set stores the context. Storage failures are ignored.
func (c *AuthCache) Set(ctx context.Context, auth AuthContext) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(auth)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, authKey(auth.ActorID), payload, c.ttl).Err()
}

// Invalidate drops the cached context for the actor.
func (c *AuthCache) Invalidate(ctx context.Context, actorID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, authKey(actorID)).Err()
}
