package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
	"github.com/mikejsmtih1985/mbl2pc/internal/service"
)

const serviceName = "mbl2pc"

// multipartOverhead leaves room for boundaries, part headers and the small
// text fields sent next to the file.
const multipartOverhead = 64 << 10

type createMessageRequest struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

func (h *Handler) Index(c *gin.Context) {
	if _, err := h.Sessions.FromRequest(c.Request); err == nil {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(`<h1>Hello</h1> <a href="/logout">logout</a>`))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(`<a href="/login">login</a>`))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().Unix(),
		"version":   BuildVersion(),
	})
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": BuildVersion()})
}

func (h *Handler) SendPage(c *gin.Context) {
	c.File(filepath.Join(h.StaticDir, "send.html"))
}

// SendText handles the form post from the UI: fields msg and sender.
func (h *Handler) SendText(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	message, err := h.Chat.SendMessage(c.Request.Context(), user, service.SendMessageInput{
		Sender:    c.PostForm("sender"),
		Text:      c.PostForm("msg"),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Message received", "message": message})
}

// SendImage handles the multipart upload: file, sender and optional text.
func (h *Handler) SendImage(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, apperrors.NewValidationError("file", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		abortWithError(c, apperrors.NewValidationError("file", "no file uploaded"))
		return
	}
	data, err := h.readUpload(header)
	if err != nil {
		abortWithError(c, err)
		return
	}

	message, err := h.Chat.SendImage(c.Request.Context(), user, service.SendImageInput{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
		Sender:      c.PostForm("sender"),
		Text:        c.PostForm("text"),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Image received", "image_url": message.ImageURL, "message": message})
}

func (h *Handler) CreateMessage(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var body createMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, apperrors.NewValidationError("body", "must be a JSON object"))
		return
	}

	message, err := h.Chat.SendMessage(c.Request.Context(), user, service.SendMessageInput{
		ID:        body.ID,
		Sender:    body.Sender,
		Text:      body.Text,
		ImageURL:  body.ImageURL,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *Handler) ListMessages(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	limit := h.MessagesMaxLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, apperrors.NewValidationError("limit", "must be an integer"))
			return
		}
	}

	messages, err := h.Chat.ListMessages(c.Request.Context(), user, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UploadImage stores a raw request body and returns its URL.
func (h *Handler) UploadImage(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.MaxUploadBytes+1))
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	url, err := h.Chat.UploadImage(c.Request.Context(), data, c.ContentType(), c.GetHeader("X-Filename"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_url": url})
}

func (h *Handler) WebSocket(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.Hub.Serve(c.Writer, c.Request, user.Sub)
}

func (h *Handler) GetBlob(c *gin.Context) {
	obj, ok := h.Blobs.Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Detail: "Not found", Code: "not_found"})
		return
	}
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

// readUpload reads at most one byte past the limit so the size policy can
// reject oversized files.
func (h *Handler) readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
