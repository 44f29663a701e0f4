package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"school_portal_echo/internal/middleware"
	"school_portal_echo/internal/models"
)

// RecipientCache is invalidated when a staff member changes how they are notified
type RecipientCache interface {
	InvalidateRecipients(ctx context.Context, roles []models.UserRole) error
}

type UserPreferenceHandler struct {
	DB     *gorm.DB
	cache  RecipientCache
	roles  []models.UserRole
	logger *slog.Logger
}

// NewUserPreferenceHandler creates the handler. cache may be nil; roles are
// the cached recipient sets to drop after an update.
func NewUserPreferenceHandler(db *gorm.DB, cache RecipientCache, roles []models.UserRole, logger *slog.Logger) *UserPreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserPreferenceHandler{DB: db, cache: cache, roles: roles, logger: logger}
}

type preferenceRequest struct {
	Channel            string `json:"channel" form:"channel" validate:"required,oneof=email whatsapp none"`
	WhatsappTargetType string `json:"whatsapp_target_type" form:"whatsapp_target_type" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string `json:"whatsapp_group_id" form:"whatsapp_group_id" validate:"max=100"`
}

// GetUserPreference returns the notification preference of a user
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	userID, err := h.authorizedUserID(c)
	if err != nil {
		return err
	}

	var pref models.UserNotifPreference
	err = h.DB.WithContext(c.Request().Context()).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// Default values
		pref = models.UserNotifPreference{
			UserID:             userID,
			Channel:            models.NotificationChannelEmail,
			WhatsappTargetType: models.WhatsappTargetTypePersonal,
		}
	}
	return respond(c, http.StatusOK, "Preference fetched", pref)
}

// UpdateUserPreference stores a new preference
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	userID, err := h.authorizedUserID(c)
	if err != nil {
		return err
	}

	var req preferenceRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	// Upsert preference
	var pref models.UserNotifPreference
	err = h.DB.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		pref = models.UserNotifPreference{UserID: userID}
	}

	pref.Channel = models.NotificationChannel(req.Channel)
	pref.WhatsappTargetType = req.WhatsappTargetType
	if pref.WhatsappTargetType == "" {
		pref.WhatsappTargetType = models.WhatsappTargetTypePersonal
	}
	pref.WhatsappGroupID = req.WhatsappGroupID
	if !pref.Valid() {
		return fail(c, http.StatusBadRequest, "WhatsApp group ID is required for group delivery")
	}

	if err := h.DB.WithContext(ctx).Save(&pref).Error; err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.InvalidateRecipients(ctx, h.roles); err != nil {
			h.logger.WarnContext(ctx, "failed to invalidate notification recipients", "user_id", userID, "err", err)
		}
	}

	return respond(c, http.StatusOK, "Preference saved", pref)
}

// authorizedUserID parses :id and allows access to your own preference, or any preference for admins
func (h *UserPreferenceHandler) authorizedUserID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	userID := uint(id)

	current := middleware.CurrentUser(c)
	if current == nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue")
	}
	if current.ID != userID && current.Role != models.RoleAdmin && current.Role != models.RoleSuperAdmin {
		return 0, echo.NewHTTPError(http.StatusForbidden, "You don't have permission to access this resource")
	}

	var count int64
	if err := h.DB.WithContext(c.Request().Context()).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return userID, nil
}
