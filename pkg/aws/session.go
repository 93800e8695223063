package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/mikejsmtih1985/mbl2pc/internal/config"
)

// NewSession builds the shared session. Static credentials are used when
// both key parts are set, otherwise the SDK default chain applies.
func NewSession(cfg config.AWSConfig) (*session.Session, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess, nil
}

// endpointConfig returns per-client overrides for a custom endpoint such
// as DynamoDB Local or MinIO.
func endpointConfig(endpoint string, pathStyle bool) []*aws.Config {
	if endpoint == "" {
		return nil
	}
	return []*aws.Config{{
		Endpoint:         aws.String(endpoint),
		S3ForcePathStyle: aws.Bool(pathStyle),
	}}
}

func NewDynamoDBClient(sess *session.Session, endpoint string) *dynamodb.DynamoDB {
	return dynamodb.New(sess, endpointConfig(endpoint, false)...)
}

func NewS3Client(sess *session.Session, endpoint string) *s3.S3 {
	return s3.New(sess, endpointConfig(endpoint, true)...)
}

func NewKinesisClient(sess *session.Session, endpoint string) *kinesis.Kinesis {
	return kinesis.New(sess, endpointConfig(endpoint, false)...)
}
