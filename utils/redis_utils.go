package utils

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// GetRedisClient connects to host:port and pings it once so a bad address
// fails at startup rather than on first use.
func GetRedisClient(ctx context.Context, host, port, passwd string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: passwd,
		DB:       0, // use default DB
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "fail to ping redis at %s:%s", host, port)
	}
	return client, nil
}
