package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mikejsmtih1985/mbl2pc/internal/blobstore"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
	"github.com/mikejsmtih1985/mbl2pc/internal/repository"
)

const (
	SenderUnknown = "unknown"

	// stands in for the real URL while the message is checked before upload
	pendingImageURL = "https://pending.invalid/image"
)

// Notifier pushes a stored message to the user's live connections.
type Notifier interface {
	NotifyMessage(userID string, message *models.Message)
}

// EventPublisher emits a message.created event to an external stream.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, message *models.Message) error
}

type SendMessageInput struct {
	ID        string
	Sender    string
	Text      string
	ImageURL  string
	UserAgent string
}

type SendImageInput struct {
	Data        []byte
	ContentType string
	Filename    string
	Sender      string
	Text        string
	UserAgent   string
}

type ChatService struct {
	messages repository.MessageRepository
	blobs    blobstore.Gateway
	notifier Notifier
	events   EventPublisher
	maxLimit int
	log      *slog.Logger
}

// NewChatService wires the service. notifier and events may be nil.
func NewChatService(
	messages repository.MessageRepository,
	blobs blobstore.Gateway,
	notifier Notifier,
	events EventPublisher,
	maxLimit int,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		messages: messages,
		blobs:    blobs,
		notifier: notifier,
		events:   events,
		maxLimit: maxLimit,
		log:      log,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, user *models.User, in SendMessageInput) (*models.Message, error) {
	message := &models.Message{
		ID:       in.ID,
		UserID:   user.Sub,
		Sender:   ResolveSender(in.Sender, in.UserAgent),
		Text:     in.Text,
		ImageURL: in.ImageURL,
	}
	if err := s.messages.AddMessage(ctx, message); err != nil {
		return nil, err
	}

	s.log.Info("Message stored", "user_id", message.UserID, "id", message.ID, "sender", message.Sender)
	s.fanOut(ctx, message)
	return message, nil
}

// UploadImage stores an attachment on its own and returns its URL.
func (s *ChatService) UploadImage(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	url, err := s.blobs.Store(ctx, data, blobstore.ResolveContentType(contentType, data), filename)
	if err != nil {
		return "", err
	}
	s.log.Info("Image stored", "url", url, "bytes", len(data))
	return url, nil
}

// SendImage uploads the attachment and records a message pointing at it.
// The message is checked before the upload so bad input leaves no object
// behind. A failed write after a successful upload leaves an orphan object.
func (s *ChatService) SendImage(ctx context.Context, user *models.User, in SendImageInput) (*models.Message, error) {
	sender := ResolveSender(in.Sender, in.UserAgent)
	candidate := &models.Message{
		UserID:   user.Sub,
		Sender:   sender,
		Text:     in.Text,
		ImageURL: pendingImageURL,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	url, err := s.UploadImage(ctx, in.Data, in.ContentType, in.Filename)
	if err != nil {
		return nil, err
	}

	return s.SendMessage(ctx, user, SendMessageInput{
		Sender:   sender,
		Text:     in.Text,
		ImageURL: url,
	})
}

// ListMessages returns the user's most recent messages in chronological
// order. limit is clamped to [1, maxLimit].
func (s *ChatService) ListMessages(ctx context.Context, user *models.User, limit int) ([]*models.Message, error) {
	limit = max(1, min(limit, s.maxLimit))
	return s.messages.GetMessages(ctx, user.Sub, limit)
}

func (s *ChatService) fanOut(ctx context.Context, message *models.Message) {
	if s.notifier != nil {
		s.notifier.NotifyMessage(message.UserID, message)
	}
	if s.events == nil {
		return
	}
	// the message is already durable, a lost event is only logged
	if err := s.events.PublishMessageCreated(ctx, message); err != nil {
		s.log.Warn("Failed to publish message event", "user_id", message.UserID, "id", message.ID, "error", err)
	}
}

// ResolveSender keeps an explicit sender label and otherwise guesses the
// device from the User-Agent.
func ResolveSender(sender, userAgent string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" || sender == SenderUnknown {
		return GuessSender(userAgent)
	}
	return sender
}

func GuessSender(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "iPhone"):
		return "iPhone"
	case strings.Contains(userAgent, "Android"):
		return "Android"
	case strings.Contains(userAgent, "Windows"):
		return "PC"
	default:
		return SenderUnknown
	}
}
