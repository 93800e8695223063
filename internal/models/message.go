package models

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
)

// SortKeyLayout is the fixed-width UTC layout used for the timestamp sort
// key. Lexicographic order of formatted values equals chronological order.
const SortKeyLayout = "2006-01-02T15:04:05.000000Z"

// the layout's four-digit year bounds the representable timestamps
const maxSortKeyYear = 9999

type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id" validate:"required"`
	Sender    string    `json:"sender" validate:"required,max=50"`
	Text      string    `json:"text" validate:"max=2000"`
	ImageURL  string    `json:"image_url" validate:"omitempty,url"`
	Timestamp time.Time `json:"timestamp"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the field constraints and the rule that a message carries
// text, an image, or both.
func (m *Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewValidationError(fe.Field(), describe(fe))
		}
		return apperrors.NewValidationError("", err.Error())
	}
	if strings.TrimSpace(m.Text) == "" && m.ImageURL == "" {
		return apperrors.NewValidationError("text", "text and image_url must not both be empty")
	}
	if year := m.Timestamp.UTC().Year(); year < 0 || year > maxSortKeyYear {
		return apperrors.NewValidationError("timestamp", "year must be between 0000 and 9999")
	}
	if m.ImageURL != "" && !strings.HasPrefix(m.ImageURL, "http://") && !strings.HasPrefix(m.ImageURL, "https://") {
		return apperrors.NewValidationError("image_url", "must be an http or https URL")
	}
	return nil
}

// SortKey returns the formatted timestamp used as the store's sort key.
func (m *Message) SortKey() string {
	return FormatSortKey(m.Timestamp)
}

func FormatSortKey(t time.Time) string {
	return t.UTC().Format(SortKeyLayout)
}

func ParseSortKey(s string) (time.Time, error) {
	return time.Parse(SortKeyLayout, s)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
