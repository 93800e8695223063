package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mikejsmtih1985/mbl2pc/internal/auth"
	"github.com/mikejsmtih1985/mbl2pc/internal/models"
)

const contextUserKey = "current_user"

// CORSMiddleware allows any origin with credentials.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// LoggingMiddleware writes one structured access log line per request.
func LoggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", attrs...)
		default:
			log.Info("HTTP request", attrs...)
		}
	}
}

// RequireSession rejects API calls without a valid session cookie.
func RequireSession(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := sessions.FromRequest(c.Request)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireSessionOrLogin sends browsers without a session to /login.
func RequireSessionOrLogin(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := sessions.FromRequest(c.Request)
		if err != nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, error) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil, errors.New("no user in request context")
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil, errors.New("unexpected user type in request context")
	}
	return user, nil
}
