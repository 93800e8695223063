package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/blobstore"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
	"github.com/mikejsmtih1985/mbl2pc/internal/repository"
)

const (
	iPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 13_5 like Mac OS X)"
	windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var tenBytePNG = []byte("\x89PNG\r\n\x1a\n\x00\x00")

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*models.Message
}

func (n *recordingNotifier) NotifyMessage(userID string, message *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type fakePublisher struct {
	published []*models.Message
	err       error
}

func (p *fakePublisher) PublishMessageCreated(_ context.Context, message *models.Message) error {
	p.published = append(p.published, message)
	return p.err
}

type fixture struct {
	svc       *ChatService
	blobs     *blobstore.MemoryGateway
	notifier  *recordingNotifier
	publisher *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	blobs, err := blobstore.NewMemoryGateway("https://blobs.example.com", 5<<20)
	require.NoError(t, err)
	f := fixture{blobs: blobs, notifier: &recordingNotifier{}, publisher: &fakePublisher{}}
	f.svc = NewChatService(
		repository.NewMemoryRepository(nil),
		blobs,
		f.notifier,
		f.publisher,
		100,
		logs.GetLoggerFromLevel(slog.LevelDebug),
	)
	return f
}

var alice = &models.User{Sub: "alice"}

func TestChatService_AliceScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.SendMessage(ctx, alice, SendMessageInput{Sender: "PC", Text: "hi"})
	req.NoError(err)
	req.NotEmpty(first.ID)

	messages, err := f.svc.ListMessages(ctx, alice, 10)
	req.NoError(err)
	req.Len(messages, 1)

	url, err := f.svc.UploadImage(ctx, tenBytePNG, "image/png", "")
	req.NoError(err)
	req.True(strings.HasPrefix(url, "https://"))

	second, err := f.svc.SendMessage(ctx, alice, SendMessageInput{Sender: "PC", ImageURL: url})
	req.NoError(err)

	messages, err = f.svc.ListMessages(ctx, alice, 10)
	req.NoError(err)
	req.Len(messages, 2)

	latest, err := f.svc.ListMessages(ctx, alice, 1)
	req.NoError(err)
	req.Len(latest, 1)
	req.Equal(second.ID, latest[0].ID)
	req.Equal(url, latest[0].ImageURL)
	req.Empty(latest[0].Text)
}

func TestChatService_SendMessageFansOut(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	message, err := f.svc.SendMessage(context.Background(), alice, SendMessageInput{Text: "hello", UserAgent: iPhoneUA})
	req.NoError(err)
	req.Equal("iPhone", message.Sender)
	req.Equal("alice", message.UserID)

	req.Len(f.notifier.messages, 1)
	req.Equal(message.ID, f.notifier.messages[0].ID)
	req.Len(f.publisher.published, 1)
}

func TestChatService_PublishFailureDoesNotFailSend(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.publisher.err = errors.New("stream unavailable")

	_, err := f.svc.SendMessage(context.Background(), alice, SendMessageInput{Sender: "PC", Text: "still stored"})
	req.NoError(err)

	messages, err := f.svc.ListMessages(context.Background(), alice, 10)
	req.NoError(err)
	req.Len(messages, 1)
}

func TestChatService_SendMessageValidation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), alice, SendMessageInput{Sender: "PC"})
	req.ErrorIs(err, apperrors.ErrValidation)
	req.Empty(f.notifier.messages)
	req.Empty(f.publisher.published)
}

func TestChatService_SendImage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	message, err := f.svc.SendImage(context.Background(), alice, SendImageInput{
		Data:      tenBytePNG,
		Filename:  "cat.png",
		Text:      "look",
		UserAgent: windowsUA,
	})
	req.NoError(err)
	req.Equal("PC", message.Sender)
	req.Equal("look", message.Text)
	req.True(strings.HasPrefix(message.ImageURL, "https://blobs.example.com/img_"))
	req.True(strings.HasSuffix(message.ImageURL, ".png"))
	req.Equal(1, f.blobs.Len())
}

func TestChatService_SendImageRejectsBeforeUpload(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.svc.SendImage(context.Background(), alice, SendImageInput{
		Data:   tenBytePNG,
		Sender: strings.Repeat("x", 51),
	})
	req.ErrorIs(err, apperrors.ErrValidation)
	req.Zero(f.blobs.Len())

	_, err = f.svc.SendImage(context.Background(), alice, SendImageInput{
		Data:        []byte("just text"),
		ContentType: "text/plain",
		Sender:      "PC",
	})
	req.ErrorIs(err, apperrors.ErrValidation)
	req.Zero(f.blobs.Len())

	messages, err := f.svc.ListMessages(context.Background(), alice, 10)
	req.NoError(err)
	req.Empty(messages)
}

func TestChatService_ListMessagesClampsLimit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.svc.maxLimit = 3
	for i := 0; i < 5; i++ {
		_, err := f.svc.SendMessage(ctx, alice, SendMessageInput{Sender: "PC", Text: "m"})
		req.NoError(err)
	}

	messages, err := f.svc.ListMessages(ctx, alice, 50)
	req.NoError(err)
	req.Len(messages, 3)

	messages, err = f.svc.ListMessages(ctx, alice, 0)
	req.NoError(err)
	req.Len(messages, 1)

	messages, err = f.svc.ListMessages(ctx, &models.User{Sub: "bob"}, 10)
	req.NoError(err)
	req.NotNil(messages)
	req.Empty(messages)
}

func TestGuessSender(t *testing.T) {
	tests := []struct {
		userAgent string
		want      string
	}{
		{iPhoneUA, "iPhone"},
		{"Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36", "Android"},
		{windowsUA, "PC"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36", SenderUnknown},
		{"", SenderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.userAgent, func(t *testing.T) {
			require.Equal(t, tt.want, GuessSender(tt.userAgent))
		})
	}
}

func TestResolveSender(t *testing.T) {
	req := require.New(t)
	req.Equal("Laptop", ResolveSender("Laptop", iPhoneUA))
	req.Equal("iPhone", ResolveSender("unknown", iPhoneUA))
	req.Equal("PC", ResolveSender("  ", windowsUA))
	req.Equal(SenderUnknown, ResolveSender("", ""))
}
