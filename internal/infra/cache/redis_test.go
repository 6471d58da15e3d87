package cache_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/astro-web3/codeveros-auth/internal/infra/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevocationList(t *testing.T, ttl time.Duration) (cache.RevocationList, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := cache.NewRedisClient(context.Background(), "redis://"+mr.Addr(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewRevocationList(client, ttl), mr
}

func TestRevocationList_RevokeAndCheck(t *testing.T) {
	list, mr := newRevocationList(t, time.Hour)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "tok"))

	revoked, err = list.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = list.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)

	sum := sha256.Sum256([]byte("tok"))
	key := "codeveros:revoked:" + hex.EncodeToString(sum[:])
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestRevocationList_EntryExpires(t *testing.T) {
	list, mr := newRevocationList(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "tok"))
	mr.FastForward(2 * time.Minute)

	revoked, err := list.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationList_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	list := cache.NewRevocationList(client, time.Minute)

	mr.Close()

	_, err := list.IsRevoked(context.Background(), "tok")
	require.Error(t, err)
	require.Error(t, list.Revoke(context.Background(), "tok"))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisClient(context.Background(), "://bad", 1)
	require.Error(t, err)
}
