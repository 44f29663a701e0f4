package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"school_portal_echo/internal/middleware"
	"school_portal_echo/internal/notifications"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// ListNotifications returns the feed for the signed in user's role
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "Please log in to continue")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	feed, err := notifications.Feed(c.Request().Context(), h.DB, user.Role, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Notifications fetched", feed)
}
