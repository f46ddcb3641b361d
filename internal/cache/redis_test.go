package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-redis-url", time.Hour)
	assert.Error(t, err)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache("redis://127.0.0.1:1/0", time.Hour)
	assert.Error(t, err)
}

func TestLookupDescriptionPropagatesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	rc := NewRedisCacheFromClient(client, time.Hour)
	defer rc.Close()

	_, found, err := rc.LookupDescription(context.Background(), "13")
	require.Error(t, err)
	assert.False(t, found)
	assert.Error(t, rc.StoreDescription(context.Background(), "13", "text"))
	assert.Error(t, rc.HealthCheck(context.Background()))
}
