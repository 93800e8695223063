package testutil

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
	"github.com/ory/dockertest/v3"
)

type Cleanup func() error

const (
	containerNameCharacters   = "abcdefghijklmnopqrstuvwxyz"
	containerNameNanoIDLength = 16
)

func initDockertest(pool *dockertest.Pool) (*dockertest.Pool, error) {
	if pool == nil {
		var err error
		pool, err = dockertest.NewPool("")
		if err != nil {
			return nil, fmt.Errorf("could not construct pool: %w", err)
		}
	}

	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to Docker: %w", err)
	}

	return pool, nil
}

func containerName(service string) (string, error) {
	generateID, err := nanoid.CustomASCII(containerNameCharacters, containerNameNanoIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate container name: %w", err)
	}
	return fmt.Sprintf("mbl2pc-%s_%s", service, generateID()), nil
}
