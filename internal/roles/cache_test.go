package roles

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPermissionCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewPermissionCache(client, time.Minute)
	ctx := context.Background()

	hit, _, err := cache.Get(ctx, 7, "role:DRH")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, 7, "role:DRH", true))
	hit, value, err := cache.Get(ctx, 7, "role:DRH")
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, value)

	require.NoError(t, cache.Set(ctx, 7, "cap:view_audit", false))
	hit, value, err = cache.Get(ctx, 7, "cap:view_audit")
	require.NoError(t, err)
	require.True(t, hit)
	require.False(t, value)
}

func TestPermissionCacheInvalidateBumpsVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewPermissionCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, "role:DRH", true))
	require.NoError(t, cache.Invalidate(ctx, 7))

	hit, _, err := cache.Get(ctx, 7, "role:DRH")
	require.NoError(t, err)
	require.False(t, hit)

	// Other employees keep their cached answers.
	require.NoError(t, cache.Set(ctx, 8, "role:DRH", true))
	require.NoError(t, cache.Invalidate(ctx, 7))
	hit, value, err := cache.Get(ctx, 8, "role:DRH")
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, value)
}

func TestResolverServesCachedAnswer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewPermissionCache(client, time.Minute)
	ctx := context.Background()

	repo := newMemRepo()
	roleID, err := repo.InsertRole(ctx, Role{Code: "DRH", Label: "HR director", Active: true})
	require.NoError(t, err)
	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 7, RoleID: roleID, RoleCode: "DRH",
		StartDate: time.Now(), Active: true,
	})
	require.NoError(t, err)

	resolver := NewResolver(repo, nil, cache)
	has, err := resolver.HasRole(ctx, 7, "DRH")
	require.NoError(t, err)
	require.True(t, has)

	// Ledger changes are invisible until invalidation bumps the version.
	_, err = repo.CloseOpenAssignments(ctx, 7, "DRH", time.Now())
	require.NoError(t, err)

	has, err = resolver.HasRole(ctx, 7, "DRH")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, cache.Invalidate(ctx, 7))
	has, err = resolver.HasRole(ctx, 7, "DRH")
	require.NoError(t, err)
	require.False(t, has)
}
