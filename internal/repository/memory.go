package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

// MemoryRepository keeps messages in process memory. It mirrors the
// DynamoDB repository's semantics and backs tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	clock    *Clock
	messages map[string][]models.Message
}

func NewMemoryRepository(clock *Clock) *MemoryRepository {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &MemoryRepository{
		clock:    clock,
		messages: make(map[string][]models.Message),
	}
}

func (r *MemoryRepository) AddMessage(ctx context.Context, message *models.Message) error {
	if err := prepare(message, r.clock); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.messages[message.UserID]
	i := sort.Search(len(log), func(i int) bool {
		return !log[i].Timestamp.Before(message.Timestamp)
	})
	if i < len(log) && log[i].Timestamp.Equal(message.Timestamp) {
		return apperrors.NewStorageError("AddMessage", "memory", apperrors.ErrConflict)
	}

	log = append(log, models.Message{})
	copy(log[i+1:], log[i:])
	log[i] = *message
	r.messages[message.UserID] = log
	return nil
}

func (r *MemoryRepository) GetMessages(ctx context.Context, userID string, limit int) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.messages[userID]
	n := min(clampLimit(limit), len(log))

	messages := make([]*models.Message, 0, n)
	for _, m := range log[len(log)-n:] {
		messages = append(messages, &m)
	}
	return messages, nil
}
