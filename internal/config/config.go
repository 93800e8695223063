package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
)

const minSessionSecretLength = 32

const (
	BackendDynamoDB = "dynamodb"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
	BackendS3       = "s3"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	AWS      AWSConfig
	DynamoDB DynamoDBConfig
	S3       S3Config
	Kinesis  KinesisConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

type ServerConfig struct {
	HTTPPort         string        `env:"HTTP_PORT,default=:8000"`
	GRPCPort         string        `env:"GRPC_PORT,default=:8001"`
	StaticDir        string        `env:"STATIC_DIR,default=static"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	MigrateOnStart   bool          `env:"MIGRATE_ON_START,default=true"`
	MessagesMaxLimit int           `env:"MESSAGES_MAX_LIMIT,default=100"`
}

type StorageConfig struct {
	MessageBackend    string `env:"STORAGE_BACKEND,default=dynamodb"`
	BlobBackend       string `env:"BLOB_BACKEND,default=s3"`
	BadgerFilepath    string `env:"BADGER_FILEPATH,default=data/badger"`
	BlobPublicBaseURL string `env:"BLOB_PUBLIC_BASE_URL,default=http://localhost:8000/blobs"`
	MaxUploadBytes    int64  `env:"MAX_UPLOAD_BYTES,default=5242880"`
}

type AWSConfig struct {
	Region          string `env:"AWS_REGION,default=us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
}

type DynamoDBConfig struct {
	MessageTable   string `env:"MBL2PC_DDB_TABLE,default=mbl2pc-messages"`
	Endpoint       string `env:"DYNAMODB_ENDPOINT_URL"`
	ConsistentRead bool   `env:"DYNAMODB_CONSISTENT_READ,default=false"`
}

type S3Config struct {
	Bucket        string `env:"S3_BUCKET,default=mbl2pc-images"`
	Endpoint      string `env:"S3_ENDPOINT_URL"`
	PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

type KinesisConfig struct {
	StreamName string `env:"KINESIS_STREAM_NAME"`
	Endpoint   string `env:"KINESIS_ENDPOINT_URL"`
}

type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

type AuthConfig struct {
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI        string        `env:"OAUTH_REDIRECT_URI,default=http://localhost:8000/auth"`
	SessionSecretKey   string        `env:"SESSION_SECRET_KEY"`
	SessionTTL         time.Duration `env:"SESSION_TTL,default=168h"`
	CookieSecure       bool          `env:"COOKIE_SECURE,default=false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine; deployed environments set real variables
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.SessionSecretKey) < minSessionSecretLength {
		return fmt.Errorf("%w: SESSION_SECRET_KEY must be at least %d characters", apperrors.ErrConfiguration, minSessionSecretLength)
	}
	if !lo.Contains([]string{BackendDynamoDB, BackendBadger, BackendMemory}, c.Storage.MessageBackend) {
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", apperrors.ErrConfiguration, c.Storage.MessageBackend)
	}
	if !lo.Contains([]string{BackendS3, BackendMemory}, c.Storage.BlobBackend) {
		return fmt.Errorf("%w: unknown BLOB_BACKEND %q", apperrors.ErrConfiguration, c.Storage.BlobBackend)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", apperrors.ErrConfiguration)
	}
	if c.Server.MessagesMaxLimit <= 0 {
		return fmt.Errorf("%w: MESSAGES_MAX_LIMIT must be positive", apperrors.ErrConfiguration)
	}
	if c.Storage.MessageBackend == BackendDynamoDB && c.DynamoDB.MessageTable == "" {
		return fmt.Errorf("%w: MBL2PC_DDB_TABLE is required", apperrors.ErrConfiguration)
	}
	if c.Storage.BlobBackend == BackendS3 && c.S3.Bucket == "" {
		return fmt.Errorf("%w: S3_BUCKET is required", apperrors.ErrConfiguration)
	}
	return nil
}

// UsesAWS reports whether any configured backend talks to AWS.
func (c *Config) UsesAWS() bool {
	return c.Storage.MessageBackend == BackendDynamoDB ||
		c.Storage.BlobBackend == BackendS3 ||
		c.Kinesis.StreamName != ""
}
