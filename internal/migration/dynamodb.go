package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

const (
	defaultMaxRetries    = 30
	defaultRetryInterval = 2 * time.Second
)

// DynamoDBMigrator creates the message table when it does not exist yet.
type DynamoDBMigrator struct {
	db            dynamodbiface.DynamoDBAPI
	tableName     string
	log           *slog.Logger
	maxRetries    int
	retryInterval time.Duration
}

func NewDynamoDBMigrator(db dynamodbiface.DynamoDBAPI, tableName string, log *slog.Logger) *DynamoDBMigrator {
	return &DynamoDBMigrator{
		db:            db,
		tableName:     tableName,
		log:           log,
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
	}
}

// CreateMessagesTable creates the table keyed by user_id (HASH) and
// timestamp (RANGE) and waits until it is ACTIVE.
func (m *DynamoDBMigrator) CreateMessagesTable(ctx context.Context) error {
	_, err := m.db.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.tableName),
	})
	if err == nil {
		m.log.Info("Table already exists, skipping creation", "table", m.tableName)
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return fmt.Errorf("failed to describe table %s: %w", m.tableName, err)
	}

	m.log.Info("Creating table", "table", m.tableName)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(m.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("user_id"),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
			{
				AttributeName: aws.String("timestamp"),
				KeyType:       aws.String(dynamodb.KeyTypeRange),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("user_id"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
			{
				// fixed-width UTC string
				AttributeName: aws.String("timestamp"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}

	if _, err := m.db.CreateTableWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", m.tableName, err)
	}

	return m.waitForTableActive(ctx)
}

func (m *DynamoDBMigrator) waitForTableActive(ctx context.Context) error {
	m.log.Info("Waiting for table to become active", "table", m.tableName)

	for i := 0; i < m.maxRetries; i++ {
		resp, err := m.db.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(m.tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", m.tableName, err)
		}

		status := aws.StringValue(resp.Table.TableStatus)
		if status == dynamodb.TableStatusActive {
			m.log.Info("Table is now active", "table", m.tableName)
			return nil
		}

		m.log.Debug("Table not active yet", "table", m.tableName, "status", status)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryInterval):
		}
	}

	return fmt.Errorf("table %s did not become active within timeout", m.tableName)
}
