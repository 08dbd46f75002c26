package actors

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *AuthCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAuthCache(client, time.Minute)
}

func TestAuthCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	auth := AuthContext{
		ActorID: 7,
		Roles:   NewRoleSet([]Role{RoleApplicant, RoleExecutor}, RoleExecutor),
		Status:  StatusApproved,
	}
	cache.Set(ctx, auth)

	got, ok := cache.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, auth.ActorID, got.ActorID)
	require.Equal(t, RoleExecutor, got.Roles.Active())
	require.Equal(t, StatusApproved, got.Status)
}

func TestAuthCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, AuthContext{ActorID: 7, Roles: NewRoleSet(nil, RoleApplicant), Status: StatusApproved})
	cache.Invalidate(ctx, 7)

	_, ok := cache.Get(ctx, 7)
	require.False(t, ok)
}

func TestAuthCacheNilSafe(t *testing.T) {
	var cache *AuthCache
	ctx := context.Background()

	cache.Set(ctx, AuthContext{ActorID: 1})
	cache.Invalidate(ctx, 1)
	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)
}
