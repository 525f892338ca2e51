//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := ConnectRedis(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb, "pos-test:")
}

type cachedShift struct {
	Open   bool   `json:"open"`
	Ticket int    `json:"ticket"`
	Name   string `json:"name"`
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	var got cachedShift
	found, err := store.GetJSON(ctx, "shift:active", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetJSON(ctx, "shift:active", cachedShift{Open: true, Ticket: 7, Name: "Domingo"}, time.Minute))
	found, err = store.GetJSON(ctx, "shift:active", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedShift{Open: true, Ticket: 7, Name: "Domingo"}, got)

	require.NoError(t, store.Delete(ctx, "shift:active"))
	found, err = store.GetJSON(ctx, "shift:active", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreExpires(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, "products:q=", []string{"tinto"}, 200*time.Millisecond))
	time.Sleep(400 * time.Millisecond)

	var got []string
	found, err := store.GetJSON(ctx, "products:q=", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreDeletePattern(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, store.SetJSON(ctx, fmt.Sprintf("products:page=%d", i), i, time.Minute))
	}
	require.NoError(t, store.SetJSON(ctx, "shift:active", cachedShift{Open: true}, time.Minute))

	InvalidatePattern(ctx, store, "products:*")

	var n int
	for _, key := range []string{"products:page=0", "products:page=149", "products:page=249"} {
		found, err := store.GetJSON(ctx, key, &n)
		require.NoError(t, err)
		assert.False(t, found, key)
	}

	var shift cachedShift
	found, err := store.GetJSON(ctx, "shift:active", &shift)
	require.NoError(t, err)
	assert.True(t, found)
}
