package blobstore

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jaevor/go-nanoid"
	"github.com/samber/lo"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
)

// Gateway stores image attachments and returns a URL that resolves to them.
type Gateway interface {
	Store(ctx context.Context, data []byte, contentType, filenameHint string) (string, error)
}

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AllowedContentTypes lists the accepted media types in a stable order.
func AllowedContentTypes() []string {
	return []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
}

// ResolveContentType keeps the declared type unless it is missing or generic,
// in which case the payload is sniffed.
func ResolveContentType(declared string, data []byte) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && mediaType != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

const keyIDLength = 10

type policy struct {
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

func newPolicy(maxBytes int64) (policy, error) {
	newID, err := nanoid.Standard(keyIDLength)
	if err != nil {
		return policy{}, fmt.Errorf("failed to create id generator: %w", err)
	}
	return policy{maxBytes: maxBytes, now: time.Now, newID: newID}, nil
}

// check validates the payload and returns the bare media type.
func (p policy) check(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError("file", "must not be empty")
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return "", apperrors.NewValidationError("file", fmt.Sprintf("must be at most %d bytes", p.maxBytes))
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", apperrors.NewValidationError("content_type", fmt.Sprintf("invalid content type %q", contentType))
	}
	mediaType = strings.ToLower(mediaType)
	if !lo.Contains(AllowedContentTypes(), mediaType) {
		return "", apperrors.NewValidationError("content_type", fmt.Sprintf("%s is not an allowed image type", mediaType))
	}
	return mediaType, nil
}

// objectKey names a new object as img_{YYYYmmddHHMMSSffffff}_{id}{ext}.
func (p policy) objectKey(mediaType string) string {
	stamp := strings.Replace(p.now().UTC().Format("20060102150405.000000"), ".", "", 1)
	return fmt.Sprintf("img_%s_%s%s", stamp, p.newID(), allowedContentTypes[mediaType])
}
