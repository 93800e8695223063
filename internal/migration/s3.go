package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Migrator creates the image bucket when it does not exist yet.
type S3Migrator struct {
	client s3iface.S3API
	bucket string
	region string
	log    *slog.Logger
}

func NewS3Migrator(client s3iface.S3API, bucket, region string, log *slog.Logger) *S3Migrator {
	return &S3Migrator{client: client, bucket: bucket, region: region, log: log}
}

func (m *S3Migrator) CreateBucket(ctx context.Context) error {
	_, err := m.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	if err == nil {
		m.log.Info("Bucket already exists, skipping creation", "bucket", m.bucket)
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}

	m.log.Info("Creating bucket", "bucket", m.bucket, "region", m.region)

	input := &s3.CreateBucketInput{Bucket: aws.String(m.bucket)}
	// us-east-1 rejects an explicit location constraint
	if m.region != "" && m.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(m.region),
		}
	}

	if _, err := m.client.CreateBucketWithContext(ctx, input); err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}

	m.log.Info("Bucket created", "bucket", m.bucket)
	return nil
}

// HeadBucket has no body, so a missing bucket surfaces as "NotFound".
func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "NotFound", s3.ErrCodeNoSuchBucket:
		return true
	}
	return false
}
