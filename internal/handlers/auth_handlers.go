package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"school_portal_echo/internal/middleware"
	"school_portal_echo/internal/models"
)

const sessionTTL = time.Hour * 24 * 5

// SessionIssuer verifies Firebase ID tokens and mints session cookies. *auth.Client implements it.
type SessionIssuer interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authClient SessionIssuer
	DB         *gorm.DB
	secure     bool
}

// NewAuthHandler creates a new AuthHandler. secure marks the session cookie HTTPS only.
func NewAuthHandler(authClient SessionIssuer, db *gorm.DB, secure bool) *AuthHandler {
	return &AuthHandler{authClient: authClient, DB: db, secure: secure}
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.authClient == nil {
		return fail(c, http.StatusServiceUnavailable, "Authentication is not configured")
	}

	// Get ID Token from Authorization Header
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return fail(c, http.StatusUnauthorized, "Missing authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return fail(c, http.StatusUnauthorized, "Invalid authorization format")
	}

	ctx := c.Request().Context()

	// Verify ID Token
	token, err := h.authClient.VerifyIDToken(ctx, tokenString)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid token")
	}

	// Only provisioned portal accounts may hold a session
	var user models.User
	if err := h.DB.WithContext(ctx).Where("firebase_uid = ?", token.UID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusForbidden, "Account is not registered")
		}
		return err
	}

	cookieValue, err := h.authClient.SessionCookie(ctx, tokenString, sessionTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to create session")
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    cookieValue,
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	return respond(c, http.StatusOK, "Logged in", map[string]interface{}{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(middleware.ClearSessionCookie())
	return respond(c, http.StatusOK, "Logged out", nil)
}

// Me returns the signed in user
func (h *AuthHandler) Me(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "Please log in to continue")
	}
	return respond(c, http.StatusOK, "Current user", user)
}
