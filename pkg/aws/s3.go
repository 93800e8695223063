package aws

import (
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// NewUploader wraps an S3 client so that custom endpoints apply to uploads.
func NewUploader(client s3iface.S3API) *s3manager.Uploader {
	return s3manager.NewUploaderWithClient(client)
}
