package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/multierr"

	"github.com/mikejsmtih1985/mbl2pc/internal/config"
	"github.com/mikejsmtih1985/mbl2pc/internal/migration"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
	"github.com/mikejsmtih1985/mbl2pc/internal/repository"
	awspkg "github.com/mikejsmtih1985/mbl2pc/pkg/aws"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate                      create the message table and image bucket
  history -user ID [-limit N]  print a user's most recent messages
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "admin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(strings.ToUpper(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch args[0] {
	case "migrate":
		return migrate(ctx, cfg, log)
	case "history":
		return history(ctx, cfg, log, args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if !cfg.UsesAWS() {
		log.Info("No AWS backend configured, nothing to migrate")
		return nil
	}
	sess, err := awspkg.NewSession(cfg.AWS)
	if err != nil {
		return err
	}

	if cfg.Storage.MessageBackend == config.BackendDynamoDB {
		client := awspkg.NewDynamoDBClient(sess, cfg.DynamoDB.Endpoint)
		if err := migration.NewDynamoDBMigrator(client, cfg.DynamoDB.MessageTable, log).CreateMessagesTable(ctx); err != nil {
			return err
		}
	}
	if cfg.Storage.BlobBackend == config.BackendS3 {
		client := awspkg.NewS3Client(sess, cfg.S3.Endpoint)
		if err := migration.NewS3Migrator(client, cfg.S3.Bucket, cfg.AWS.Region, log).CreateBucket(ctx); err != nil {
			return err
		}
	}

	log.Info("Migration completed")
	return nil
}

func history(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	userID := fs.String("user", "", "user id (OAuth subject)")
	limit := fs.Int("limit", 20, "number of messages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	var repo repository.MessageRepository
	switch cfg.Storage.MessageBackend {
	case config.BackendDynamoDB:
		sess, err := awspkg.NewSession(cfg.AWS)
		if err != nil {
			return err
		}
		repo = repository.NewDynamoDBRepository(awspkg.NewDynamoDBClient(sess, cfg.DynamoDB.Endpoint), cfg.DynamoDB, nil, log)
	case config.BackendBadger:
		db, err := badger.Open(badger.DefaultOptions(cfg.Storage.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			err = multierr.Append(err, db.Close())
		}()
		repo = repository.NewBadgerRepository(db, cfg.Storage.BadgerFilepath, nil, log)
	default:
		return fmt.Errorf("history is not available for the %s backend", cfg.Storage.MessageBackend)
	}

	messages, err := repo.GetMessages(ctx, *userID, *limit)
	if err != nil {
		return err
	}
	renderHistory(out, messages)
	return nil
}

func renderHistory(out io.Writer, messages []*models.Message) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Timestamp", "Sender", "Text", "Image", "ID"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		table.Append([]string{
			m.SortKey(),
			m.Sender,
			m.Text,
			m.ImageURL,
			m.ID,
		})
	}
	table.Render()
}
