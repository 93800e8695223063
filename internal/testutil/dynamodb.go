package testutil

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/multierr"
)

const dynamoDBExpireSeconds = 120

// TestWithDynamoDB starts DynamoDB Local and returns a client pointed at it.
// An error is returned when Docker is unreachable so callers can skip.
func TestWithDynamoDB(pool *dockertest.Pool) (_ *dynamodb.DynamoDB, _ Cleanup, err error) {
	pool, err = initDockertest(pool)
	if err != nil {
		return nil, nil, err
	}

	name, err := containerName("dynamodb")
	if err != nil {
		return nil, nil, err
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       name,
			Repository: "amazon/dynamodb-local",
			Tag:        "latest",
			Cmd:        []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
		},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to run dynamodb container: %w", err)
	}

	cleanup := func() error {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			return fmt.Errorf("failed to purge dynamodb container: %w", purgeErr)
		}
		return nil
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, cleanup())
		}
	}()

	if err = resource.Expire(dynamoDBExpireSeconds); err != nil {
		return nil, nil, fmt.Errorf("failed to set expire time: %w", err)
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String("us-east-1"),
		Endpoint:    aws.String(fmt.Sprintf("http://%s", resource.GetHostPort("8000/tcp"))),
		Credentials: credentials.NewStaticCredentials("local", "local", ""),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	client := dynamodb.New(sess)

	err = pool.Retry(func() error {
		_, retryErr := client.ListTables(&dynamodb.ListTablesInput{})
		return retryErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to dynamodb: %w", err)
	}

	return client, cleanup, nil
}
