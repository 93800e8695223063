package repository

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

func openBadger(t *testing.T) (*badger.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dir
}

func TestBadgerRepository(t *testing.T) {
	repositoryContract(t, func(t *testing.T) MessageRepository {
		db, dir := openBadger(t)
		return NewBadgerRepository(db, dir, nil, logs.GetLoggerFromLevel(slog.LevelDebug))
	})
}

func TestBadgerRepository_SurvivesReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo := NewBadgerRepository(db, dir, nil, log)
	req.NoError(repo.AddMessage(context.Background(), &models.Message{
		UserID: "alice", Sender: "Android", ImageURL: "https://b.s3.amazonaws.com/img.png", Timestamp: at,
	}))
	req.NoError(db.Close())

	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	repo = NewBadgerRepository(db, dir, nil, log)

	messages, err := repo.GetMessages(context.Background(), "alice", 10)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("Android", messages[0].Sender)
	req.Equal("https://b.s3.amazonaws.com/img.png", messages[0].ImageURL)
	req.True(messages[0].Timestamp.Equal(at))
}
