package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
)

var testSecret = strings.Repeat("k", 32)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("SESSION_SECRET_KEY", testSecret)

	cfg, err := Load()
	req.NoError(err)

	req.Equal("us-east-1", cfg.AWS.Region)
	req.Equal("mbl2pc-messages", cfg.DynamoDB.MessageTable)
	req.Equal("mbl2pc-images", cfg.S3.Bucket)
	req.False(cfg.DynamoDB.ConsistentRead)
	req.Equal(":8000", cfg.Server.HTTPPort)
	req.Equal(30*time.Second, cfg.Server.ShutdownTimeout)
	req.Equal(100, cfg.Server.MessagesMaxLimit)
	req.Equal(int64(5*1024*1024), cfg.Storage.MaxUploadBytes)
	req.Equal(BackendDynamoDB, cfg.Storage.MessageBackend)
	req.Equal(BackendS3, cfg.Storage.BlobBackend)
	req.Equal("http://localhost:8000/auth", cfg.Auth.RedirectURI)
	req.Equal(168*time.Hour, cfg.Auth.SessionTTL)
	req.True(cfg.UsesAWS())
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("SESSION_SECRET_KEY", testSecret)
	t.Setenv("DYNAMODB_CONSISTENT_READ", "true")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("BLOB_BACKEND", "memory")
	t.Setenv("MESSAGES_MAX_LIMIT", "25")
	t.Setenv("DYNAMODB_ENDPOINT_URL", "http://localhost:8002")

	cfg, err := Load()
	req.NoError(err)
	req.True(cfg.DynamoDB.ConsistentRead)
	req.Equal(25, cfg.Server.MessagesMaxLimit)
	req.Equal("http://localhost:8002", cfg.DynamoDB.Endpoint)
	req.False(cfg.UsesAWS())
}

func TestLoad_SessionSecretTooShort(t *testing.T) {
	req := require.New(t)
	t.Setenv("SESSION_SECRET_KEY", "short")

	_, err := Load()
	req.ErrorIs(err, apperrors.ErrConfiguration)
	req.Contains(err.Error(), "at least 32 characters")
}

func TestValidate_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"message backend", func(c *Config) { c.Storage.MessageBackend = "postgres" }},
		{"blob backend", func(c *Config) { c.Storage.BlobBackend = "gcs" }},
		{"upload cap", func(c *Config) { c.Storage.MaxUploadBytes = 0 }},
		{"page limit", func(c *Config) { c.Server.MessagesMaxLimit = -1 }},
		{"table name", func(c *Config) { c.DynamoDB.MessageTable = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			MessageBackend: BackendDynamoDB,
			BlobBackend:    BackendS3,
			MaxUploadBytes: 1024,
		},
		Server:   ServerConfig{MessagesMaxLimit: 100},
		DynamoDB: DynamoDBConfig{MessageTable: "t"},
		S3:       S3Config{Bucket: "b"},
		Auth:     AuthConfig{SessionSecretKey: testSecret},
	}
}
