package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"

	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

const EventMessageCreated = "message.created"

type MessageEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

// KinesisPublisher emits message events partitioned by user so that one
// user's events stay ordered within a shard.
type KinesisPublisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
	log        *slog.Logger
}

func NewKinesisPublisher(client kinesisiface.KinesisAPI, streamName string, log *slog.Logger) *KinesisPublisher {
	return &KinesisPublisher{
		client:     client,
		streamName: streamName,
		log:        log,
	}
}

func (k *KinesisPublisher) PublishMessageCreated(ctx context.Context, message *models.Message) error {
	data, err := json.Marshal(MessageEvent{Type: EventMessageCreated, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &kinesis.PutRecordInput{
		Data:         data,
		PartitionKey: aws.String(message.UserID),
		StreamName:   aws.String(k.streamName),
	}

	result, err := k.client.PutRecordWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to put record to Kinesis: %w", err)
	}

	k.log.Debug("Event published to Kinesis",
		"stream", k.streamName,
		"sequence_number", aws.StringValue(result.SequenceNumber),
		"message_id", message.ID)
	return nil
}
