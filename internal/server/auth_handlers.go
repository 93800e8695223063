package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikejsmtih1985/mbl2pc/internal/auth"
)

const stateTTL = 10 * time.Minute

// Login stores a fresh state value and redirects to the provider.
func (h *Handler) Login(c *gin.Context) {
	state, err := auth.NewState()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.States.SaveState(c.Request.Context(), state, stateTTL); err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.Provider.AuthCodeURL(state))
}

// AuthCallback completes the OAuth flow and sets the session cookie.
func (h *Handler) AuthCallback(c *gin.Context) {
	ctx := c.Request.Context()

	ok, err := h.States.ConsumeState(ctx, c.Query("state"))
	if err != nil || !ok {
		h.loginFailed(c, "unknown or expired state", err)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.loginFailed(c, "missing authorization code", nil)
		return
	}

	user, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		h.loginFailed(c, "code exchange failed", err)
		return
	}

	cookie, err := h.Sessions.Cookie(user)
	if err != nil {
		h.loginFailed(c, "failed to issue session", err)
		return
	}
	http.SetCookie(c.Writer, cookie)

	h.Log.Info("User logged in", "user_id", user.Sub)
	c.Redirect(http.StatusFound, "/send.html")
}

func (h *Handler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.Sessions.ClearCookie())
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) loginFailed(c *gin.Context, reason string, err error) {
	h.Log.Warn("Login failed", "reason", reason, "error", err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not log in."})
}
