package deduplicator

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/zsxqintel/utils"
	"github.com/Luismorlan/zsxqintel/utils/dotenv"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

func TestMemorySeenCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySeenCache()

	seen, err := c.Seen(ctx, "1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkSeen(ctx, "1", "2"))
	require.NoError(t, c.MarkSeen(ctx, "1"))

	seen, err = c.Seen(ctx, "1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, 2, c.Len())
}

// Needs a reachable redis, configured through REDIS_HOST / REDIS_PORT.
func TestRedisSeenCache(t *testing.T) {
	if os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set")
	}
	ctx := context.Background()
	client, err := utils.GetRedisClient(ctx, os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"), os.Getenv("REDIS_PASSWD"))
	require.NoError(t, err)
	defer client.Close()

	key := "zsxqintel:test:" + uuid.New().String()
	defer client.Del(ctx, key)
	c := NewRedisSeenCache(client, key)

	seen, err := c.Seen(ctx, "1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkSeen(ctx, "1", "file_2"))
	require.NoError(t, c.MarkSeen(ctx))

	for _, id := range []string{"1", "file_2"} {
		seen, err := c.Seen(ctx, id)
		require.NoError(t, err)
		assert.True(t, seen)
	}
}
