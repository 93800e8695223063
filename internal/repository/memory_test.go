package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

// repositoryContract runs the behaviour every MessageRepository shares.
func repositoryContract(t *testing.T, newRepo func(t *testing.T) MessageRepository) {
	ctx := context.Background()

	t.Run("returns messages in send order", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: fmt.Sprintf("m%d", i)}))
		}

		messages, err := repo.GetMessages(ctx, "alice", 5)
		req.NoError(err)
		req.Len(messages, 5)
		for i, m := range messages {
			req.Equal(fmt.Sprintf("m%d", i), m.Text)
			if i > 0 {
				req.True(m.Timestamp.After(messages[i-1].Timestamp))
			}
		}
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		for i := 0; i < 4; i++ {
			req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: fmt.Sprintf("m%d", i)}))
		}

		messages, err := repo.GetMessages(ctx, "alice", 2)
		req.NoError(err)
		req.Len(messages, 2)
		req.Equal("m2", messages[0].Text)
		req.Equal("m3", messages[1].Text)
	})

	t.Run("partitions are isolated", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: "mine"}))
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice:bob", Sender: "PC", Text: "prefix trap"}))
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "bob", Sender: "PC", Text: "theirs"}))

		messages, err := repo.GetMessages(ctx, "alice", 10)
		req.NoError(err)
		req.Len(messages, 1)
		req.Equal("alice", messages[0].UserID)
		req.Equal("mine", messages[0].Text)
	})

	t.Run("unknown user yields empty slice", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)

		messages, err := repo.GetMessages(ctx, "ghost", 10)
		req.NoError(err)
		req.NotNil(messages)
		req.Empty(messages)
	})

	t.Run("non positive limit yields empty slice", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: "hi"}))

		for _, limit := range []int{0, -3} {
			messages, err := repo.GetMessages(ctx, "alice", limit)
			req.NoError(err)
			req.Empty(messages)
		}
	})

	t.Run("huge limit returns the whole history", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: fmt.Sprintf("m%d", i)}))
		}

		var messages []*models.Message
		req.NotPanics(func() {
			var err error
			messages, err = repo.GetMessages(ctx, "alice", math.MaxInt)
			req.NoError(err)
		})
		req.Len(messages, 3)
		req.Equal("m0", messages[0].Text)
		req.Equal("m2", messages[2].Text)
	})

	t.Run("invalid message is rejected", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)

		err := repo.AddMessage(ctx, &models.Message{Sender: "PC", Text: "orphan"})
		req.ErrorIs(err, apperrors.ErrValidation)
		err = repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC"})
		req.ErrorIs(err, apperrors.ErrValidation)
		err = repo.AddMessage(ctx, &models.Message{
			UserID: "alice", Sender: "PC", Text: "far future",
			Timestamp: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		req.ErrorIs(err, apperrors.ErrValidation)

		messages, err := repo.GetMessages(ctx, "alice", 10)
		req.NoError(err)
		req.Empty(messages)
	})

	t.Run("same id with fresh timestamp is a second entry", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		req.NoError(repo.AddMessage(ctx, &models.Message{ID: "fixed", UserID: "alice", Sender: "PC", Text: "one"}))
		req.NoError(repo.AddMessage(ctx, &models.Message{ID: "fixed", UserID: "alice", Sender: "PC", Text: "two"}))

		messages, err := repo.GetMessages(ctx, "alice", 10)
		req.NoError(err)
		req.Len(messages, 2)
		req.Equal("fixed", messages[0].ID)
		req.Equal("fixed", messages[1].ID)
		req.NotEqual(messages[0].Timestamp, messages[1].Timestamp)
	})

	t.Run("occupied slot is a conflict and is not overwritten", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		req.NoError(repo.AddMessage(ctx, &models.Message{ID: "fixed", UserID: "alice", Sender: "PC", Text: "original", Timestamp: at}))

		err := repo.AddMessage(ctx, &models.Message{ID: "fixed", UserID: "alice", Sender: "PC", Text: "replacement", Timestamp: at})
		req.ErrorIs(err, apperrors.ErrConflict)

		messages, err := repo.GetMessages(ctx, "alice", 10)
		req.NoError(err)
		req.Len(messages, 1)
		req.Equal("original", messages[0].Text)
	})

	t.Run("caller supplied timestamps are ordered", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t)
		at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: "later", Timestamp: at.Add(time.Minute)}))
		req.NoError(repo.AddMessage(ctx, &models.Message{UserID: "alice", Sender: "PC", Text: "earlier", Timestamp: at}))

		messages, err := repo.GetMessages(ctx, "alice", 10)
		req.NoError(err)
		req.Equal("earlier", messages[0].Text)
		req.Equal("later", messages[1].Text)
	})
}

func TestMemoryRepository(t *testing.T) {
	repositoryContract(t, func(t *testing.T) MessageRepository {
		return NewMemoryRepository(nil)
	})
}

func TestMemoryRepository_ConcurrentWritersKeepDistinctTimestamps(t *testing.T) {
	req := require.New(t)
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository(NewClock(func() time.Time { return frozen }))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.AddMessage(context.Background(), &models.Message{UserID: "alice", Sender: "PC", Text: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	messages, err := repo.GetMessages(context.Background(), "alice", 100)
	req.NoError(err)
	req.Len(messages, 50)
	seen := make(map[time.Time]bool)
	for _, m := range messages {
		req.False(seen[m.Timestamp])
		seen[m.Timestamp] = true
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	req := require.New(t)
	repo := NewMemoryRepository(nil)
	req.NoError(repo.AddMessage(context.Background(), &models.Message{UserID: "alice", Sender: "PC", Text: "hi"}))

	first, err := repo.GetMessages(context.Background(), "alice", 1)
	req.NoError(err)
	first[0].Text = "tampered"

	second, err := repo.GetMessages(context.Background(), "alice", 1)
	req.NoError(err)
	req.Equal("hi", second[0].Text)
}
