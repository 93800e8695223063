package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/config"
)

const metadataOriginalFilename = "original-filename"

type S3Gateway struct {
	uploader      s3manageriface.UploaderAPI
	bucket        string
	publicBaseURL string
	// endpoint is set for S3-compatible stores where the virtual-hosted AWS
	// URL would not resolve; those are addressed path-style
	endpoint string
	policy   policy
	log      *slog.Logger
}

func NewS3Gateway(uploader s3manageriface.UploaderAPI, cfg config.S3Config, maxBytes int64, log *slog.Logger) (*S3Gateway, error) {
	p, err := newPolicy(maxBytes)
	if err != nil {
		return nil, err
	}
	return &S3Gateway{
		uploader:      uploader,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		policy:        p,
		log:           log,
	}, nil
}

func (g *S3Gateway) Store(ctx context.Context, data []byte, contentType, filenameHint string) (string, error) {
	mediaType, err := g.policy.check(data, contentType)
	if err != nil {
		return "", err
	}
	key := g.policy.objectKey(mediaType)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mediaType),
	}
	if filenameHint != "" {
		// metadata values travel as HTTP headers
		input.Metadata = map[string]*string{
			metadataOriginalFilename: aws.String(url.QueryEscape(filenameHint)),
		}
	}

	result, err := g.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return "", apperrors.NewStorageError("Upload", g.bucket, err)
	}

	g.log.Debug("Image uploaded", "bucket", g.bucket, "key", key, "bytes", len(data))
	return g.objectURL(key, result), nil
}

func (g *S3Gateway) objectURL(key string, result *s3manager.UploadOutput) string {
	switch {
	case g.publicBaseURL != "":
		return fmt.Sprintf("%s/%s", g.publicBaseURL, key)
	case g.endpoint == "":
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", g.bucket, key)
	case result != nil && result.Location != "":
		return result.Location
	default:
		return fmt.Sprintf("%s/%s/%s", g.endpoint, g.bucket, key)
	}
}
