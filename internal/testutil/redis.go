package testutil

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/multierr"
)

const redisExpireSeconds = 120

// TestWithRedis starts a Redis container and returns its host:port address.
// An error is returned when Docker is unreachable so callers can skip.
func TestWithRedis(pool *dockertest.Pool) (_ string, _ Cleanup, err error) {
	pool, err = initDockertest(pool)
	if err != nil {
		return "", nil, err
	}

	name, err := containerName("redis")
	if err != nil {
		return "", nil, err
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       name,
			Repository: "redis",
			Tag:        "7-alpine",
		},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to run redis container: %w", err)
	}

	cleanup := func() error {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			return fmt.Errorf("failed to purge redis container: %w", purgeErr)
		}
		return nil
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, cleanup())
		}
	}()

	if err = resource.Expire(redisExpireSeconds); err != nil {
		return "", nil, fmt.Errorf("failed to set expire time: %w", err)
	}

	address := resource.GetHostPort("6379/tcp")
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: address})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return address, cleanup, nil
}
