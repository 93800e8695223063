package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"go.uber.org/multierr"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/auth"
	"github.com/mikejsmtih1985/mbl2pc/internal/blobstore"
	"github.com/mikejsmtih1985/mbl2pc/internal/config"
	"github.com/mikejsmtih1985/mbl2pc/internal/migration"
	"github.com/mikejsmtih1985/mbl2pc/internal/repository"
	"github.com/mikejsmtih1985/mbl2pc/internal/server"
	"github.com/mikejsmtih1985/mbl2pc/internal/service"
	awspkg "github.com/mikejsmtih1985/mbl2pc/pkg/aws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mbl2pc terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (code int, err error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}

	log := logs.GetLoggerFromString(strings.ToUpper(cfg.LogLevel))
	log.Info("Starting mbl2pc",
		"version", server.BuildVersion(),
		"storage_backend", cfg.Storage.MessageBackend,
		"blob_backend", cfg.Storage.BlobBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// closers run in reverse order once the servers are down
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		if err != nil && code == exitOK {
			code = exitRuntime
		}
	}()

	var sess *session.Session
	if cfg.UsesAWS() {
		if sess, err = awspkg.NewSession(cfg.AWS); err != nil {
			return exitRuntime, err
		}
	}

	clock := repository.NewClock(nil)

	messages, closeMessages, err := buildMessageRepository(ctx, cfg, sess, clock, log)
	if err != nil {
		return exitRuntime, err
	}
	closers = append(closers, closeMessages)

	blobs, memoryBlobs, err := buildBlobGateway(ctx, cfg, sess, log)
	if err != nil {
		return exitRuntime, err
	}

	states, closeStates, err := buildStateRepository(cfg, log)
	if err != nil {
		return exitRuntime, err
	}
	closers = append(closers, closeStates)

	var events service.EventPublisher
	if cfg.Kinesis.StreamName != "" {
		kinesisClient := awspkg.NewKinesisClient(sess, cfg.Kinesis.Endpoint)
		events = awspkg.NewKinesisPublisher(kinesisClient, cfg.Kinesis.StreamName, log)
		log.Info("Publishing message events", "stream", cfg.Kinesis.StreamName)
	}

	hub := server.NewWebSocketHub(log)
	chatService := service.NewChatService(messages, blobs, hub, events, cfg.Server.MessagesMaxLimit, log)

	router := server.NewRouter(server.Dependencies{
		Chat:             chatService,
		Sessions:         auth.NewSessionManager(cfg.Auth),
		Provider:         auth.NewGoogleProvider(cfg.Auth),
		States:           states,
		Hub:              hub,
		Blobs:            memoryBlobs,
		StaticDir:        cfg.Server.StaticDir,
		MessagesMaxLimit: cfg.Server.MessagesMaxLimit,
		MaxUploadBytes:   cfg.Storage.MaxUploadBytes,
		Log:              log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)

	go func() {
		log.Info("Starting HTTP server", "address", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var grpcServer *server.GRPCServer
	if cfg.Server.GRPCPort != "" {
		listener, err := net.Listen("tcp", cfg.Server.GRPCPort)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCPort, err)
		}
		grpcServer = server.NewGRPCServer(log)
		go func() {
			log.Info("Starting gRPC health server", "address", cfg.Server.GRPCPort)
			if err := grpcServer.Serve(listener); err != nil {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-errChan:
		log.Error("Server failed", "error", err)
		code = exitRuntime
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		err = multierr.Append(err, fmt.Errorf("HTTP server forced to shutdown: %w", shutdownErr))
	}
	if grpcServer != nil {
		grpcServer.Shutdown()
	}
	hub.Close()

	log.Info("Servers stopped")
	return code, err
}

func buildMessageRepository(ctx context.Context, cfg *config.Config, sess *session.Session, clock *repository.Clock, log *slog.Logger) (repository.MessageRepository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.MessageBackend {
	case config.BackendDynamoDB:
		client := awspkg.NewDynamoDBClient(sess, cfg.DynamoDB.Endpoint)
		if cfg.Server.MigrateOnStart {
			migrator := migration.NewDynamoDBMigrator(client, cfg.DynamoDB.MessageTable, log)
			if err := migrator.CreateMessagesTable(ctx); err != nil {
				return nil, nil, fmt.Errorf("failed to create DynamoDB table: %w", err)
			}
		}
		return repository.NewDynamoDBRepository(client, cfg.DynamoDB, clock, log), noop, nil

	case config.BackendBadger:
		db, err := badger.Open(badger.DefaultOptions(cfg.Storage.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		closeDB := func() error {
			log.Info("Closing BadgerDB...")
			return db.Close()
		}
		return repository.NewBadgerRepository(db, cfg.Storage.BadgerFilepath, clock, log), closeDB, nil

	case config.BackendMemory:
		log.Warn("Messages are kept in memory and lost on restart")
		return repository.NewMemoryRepository(clock), noop, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown STORAGE_BACKEND %q", apperrors.ErrConfiguration, cfg.Storage.MessageBackend)
}

// buildBlobGateway also returns the memory gateway, if chosen, so the
// router can serve its objects.
func buildBlobGateway(ctx context.Context, cfg *config.Config, sess *session.Session, log *slog.Logger) (blobstore.Gateway, *blobstore.MemoryGateway, error) {
	switch cfg.Storage.BlobBackend {
	case config.BackendS3:
		client := awspkg.NewS3Client(sess, cfg.S3.Endpoint)
		if cfg.Server.MigrateOnStart {
			migrator := migration.NewS3Migrator(client, cfg.S3.Bucket, cfg.AWS.Region, log)
			if err := migrator.CreateBucket(ctx); err != nil {
				return nil, nil, fmt.Errorf("failed to create S3 bucket: %w", err)
			}
		}
		gateway, err := blobstore.NewS3Gateway(awspkg.NewUploader(client), cfg.S3, cfg.Storage.MaxUploadBytes, log)
		if err != nil {
			return nil, nil, err
		}
		return gateway, nil, nil

	case config.BackendMemory:
		log.Warn("Images are kept in memory and lost on restart")
		gateway, err := blobstore.NewMemoryGateway(cfg.Storage.BlobPublicBaseURL, cfg.Storage.MaxUploadBytes)
		if err != nil {
			return nil, nil, err
		}
		return gateway, gateway, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown BLOB_BACKEND %q", apperrors.ErrConfiguration, cfg.Storage.BlobBackend)
}

func buildStateRepository(cfg *config.Config, log *slog.Logger) (repository.StateRepository, func() error, error) {
	if cfg.Redis.Address == "" {
		log.Info("No REDIS_ADDRESS, keeping OAuth state in memory")
		return repository.NewMemoryStateRepository(), func() error { return nil }, nil
	}

	states, err := repository.NewRedisStateRepository(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	log.Info("OAuth state stored in Redis", "address", cfg.Redis.Address)
	return states, states.Close, nil
}
