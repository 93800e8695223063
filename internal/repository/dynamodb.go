package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/config"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

const (
	AttrUserID    = "user_id"
	AttrTimestamp = "timestamp"
)

// messageItem is the stored shape of a message. The timestamp is kept as a
// fixed-width string so the range key sorts chronologically.
type messageItem struct {
	UserID    string `dynamodbav:"user_id"`
	Timestamp string `dynamodbav:"timestamp"`
	ID        string `dynamodbav:"id"`
	Sender    string `dynamodbav:"sender"`
	Text      string `dynamodbav:"text"`
	ImageURL  string `dynamodbav:"image_url"`
}

type DynamoDBRepository struct {
	db             dynamodbiface.DynamoDBAPI
	messageTable   string
	consistentRead bool
	clock          *Clock
	log            *slog.Logger
}

// NewDynamoDBRepository builds a repository over the shared DynamoDB client.
// Reads are eventually consistent unless cfg.ConsistentRead is set, so a
// message may not show up in a read issued right after its write.
func NewDynamoDBRepository(db dynamodbiface.DynamoDBAPI, cfg config.DynamoDBConfig, clock *Clock, log *slog.Logger) *DynamoDBRepository {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &DynamoDBRepository{
		db:             db,
		messageTable:   cfg.MessageTable,
		consistentRead: cfg.ConsistentRead,
		clock:          clock,
		log:            log,
	}
}

func (r *DynamoDBRepository) AddMessage(ctx context.Context, message *models.Message) error {
	if err := prepare(message, r.clock); err != nil {
		return err
	}

	item, err := dynamodbattribute.MarshalMap(toItem(message))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name(AttrUserID))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.messageTable),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return apperrors.NewStorageError("PutItem", r.messageTable, fmt.Errorf("%w: %s at %s", apperrors.ErrConflict, message.UserID, message.SortKey()))
		}
		return apperrors.NewStorageError("PutItem", r.messageTable, err)
	}

	r.log.Debug("Message stored", "table", r.messageTable, "user_id", message.UserID, "id", message.ID)
	return nil
}

func (r *DynamoDBRepository) GetMessages(ctx context.Context, userID string, limit int) ([]*models.Message, error) {
	limit = clampLimit(limit)
	if limit == 0 {
		return []*models.Message{}, nil
	}

	keyCond := expression.Key(AttrUserID).Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.messageTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		ConsistentRead:            aws.Bool(r.consistentRead),
	}

	messages := make([]*models.Message, 0, min(limit, resultCapacity))
	for {
		input.Limit = aws.Int64(int64(limit - len(messages)))
		result, err := r.db.QueryWithContext(ctx, input)
		if err != nil {
			return nil, apperrors.NewStorageError("Query", r.messageTable, err)
		}

		for _, raw := range result.Items {
			var item messageItem
			if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
				return nil, apperrors.NewStorageError("Query", r.messageTable, fmt.Errorf("failed to unmarshal message: %w", err))
			}
			message, err := item.toModel()
			if err != nil {
				return nil, apperrors.NewStorageError("Query", r.messageTable, err)
			}
			messages = append(messages, message)
		}

		if len(messages) >= limit || len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	// newest first from the query, callers want oldest first
	slices.Reverse(messages)
	return messages, nil
}

func toItem(m *models.Message) messageItem {
	return messageItem{
		UserID:    m.UserID,
		Timestamp: m.SortKey(),
		ID:        m.ID,
		Sender:    m.Sender,
		Text:      m.Text,
		ImageURL:  m.ImageURL,
	}
}

func (i messageItem) toModel() (*models.Message, error) {
	ts, err := models.ParseSortKey(i.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", i.Timestamp, err)
	}
	return &models.Message{
		ID:        i.ID,
		UserID:    i.UserID,
		Sender:    i.Sender,
		Text:      i.Text,
		ImageURL:  i.ImageURL,
		Timestamp: ts,
	}, nil
}
