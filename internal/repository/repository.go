package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

// MessageRepository is a per-user, time-ordered, append-only message log.
//
// AddMessage assigns ID and Timestamp when they are empty, validates the
// message and writes it under (UserID, Timestamp). An occupied slot is never
// overwritten; the write fails with apperrors.ErrConflict instead.
//
// GetMessages returns at most limit of the user's most recent messages,
// oldest first. It returns an empty slice when the user has none.
type MessageRepository interface {
	AddMessage(ctx context.Context, message *models.Message) error
	GetMessages(ctx context.Context, userID string, limit int) ([]*models.Message, error)
}

// Clock hands out strictly increasing timestamps at microsecond resolution,
// the precision of the stored sort key. It only orders writes issued by this
// process; concurrent writers in other processes are not coordinated.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// prepare fills the generated fields of message and validates it.
func prepare(message *models.Message, clock *Clock) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = clock.Next()
	} else {
		message.Timestamp = message.Timestamp.UTC().Truncate(time.Microsecond)
	}
	return message.Validate()
}

// resultCapacity bounds the up-front allocation for a read; limit only
// caps the result and may be far larger than any stored history.
const resultCapacity = 100

func clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}
