package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

// BadgerRepository stores messages in a local BadgerDB for runs without AWS.
// Keys are "msg:{hex(user_id)}:{sort key}". Hex encoding keeps one user's
// prefix from matching another's, and the fixed-width sort key keeps
// iteration chronological.
type BadgerRepository struct {
	db    *badger.DB
	path  string
	clock *Clock
	log   *slog.Logger
}

func NewBadgerRepository(db *badger.DB, path string, clock *Clock, log *slog.Logger) *BadgerRepository {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &BadgerRepository{db: db, path: path, clock: clock, log: log}
}

func userPrefix(userID string) []byte {
	return []byte("msg:" + hex.EncodeToString([]byte(userID)) + ":")
}

func (r *BadgerRepository) AddMessage(ctx context.Context, message *models.Message) error {
	if err := prepare(message, r.clock); err != nil {
		return err
	}

	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	key := append(userPrefix(message.UserID), message.SortKey()...)

	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s at %s", apperrors.ErrConflict, message.UserID, message.SortKey())
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return apperrors.NewStorageError("Update", r.path, err)
	}

	r.log.Debug("Message stored", "path", r.path, "user_id", message.UserID, "id", message.ID)
	return nil
}

func (r *BadgerRepository) GetMessages(ctx context.Context, userID string, limit int) ([]*models.Message, error) {
	limit = clampLimit(limit)
	messages := make([]*models.Message, 0, min(limit, resultCapacity))
	if limit == 0 {
		return messages, nil
	}

	prefix := userPrefix(userID)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xff sorts after every sort key character
		for it.Seek(append(slices.Clone(prefix), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var m models.Message
				if err := json.Unmarshal(value, &m); err != nil {
					return err
				}
				messages = append(messages, &m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageError("View", r.path, err)
	}

	slices.Reverse(messages)
	return messages, nil
}
