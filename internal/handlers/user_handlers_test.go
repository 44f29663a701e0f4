package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school_portal_echo/internal/middleware"
	"school_portal_echo/internal/models"
)

type fakeIssuer struct{}

func (fakeIssuer) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if !strings.HasPrefix(idToken, "id-") {
		return nil, errors.New("token has invalid signature")
	}
	return &auth.Token{UID: strings.TrimPrefix(idToken, "id-")}, nil
}

func (fakeIssuer) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	return "session-" + idToken, nil
}

type recordingCache struct {
	calls [][]models.UserRole
}

func (r *recordingCache) InvalidateRecipients(ctx context.Context, roles []models.UserRole) error {
	r.calls = append(r.calls, roles)
	return nil
}

func newUserDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.UserNotifPreference{}))
	return db
}

func TestHandleLogin(t *testing.T) {
	db := newUserDB(t)
	require.NoError(t, db.Create(&models.User{FirebaseUID: "staff-1", Name: "Amaka", Email: "amaka@school.ng", Role: models.RoleAdmin}).Error)

	e := echo.New()
	h := NewAuthHandler(fakeIssuer{}, db, true)
	e.POST("/api/auth/login", h.HandleLogin)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "missing header", code: http.StatusUnauthorized},
		{name: "not bearer", header: "Token id-staff-1", code: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer forged", code: http.StatusUnauthorized},
		{name: "unregistered", header: "Bearer id-stranger", code: http.StatusForbidden},
		{name: "ok", header: "Bearer id-staff-1", code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)

			if tt.code == http.StatusOK {
				cookies := rec.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
				assert.Equal(t, "session-id-staff-1", cookies[0].Value)
				assert.True(t, cookies[0].Secure)
				assert.Contains(t, rec.Body.String(), `"role":"admin"`)
			}
		})
	}
}

func TestUserPreferenceHandler(t *testing.T) {
	db := newUserDB(t)
	admin := models.User{FirebaseUID: "a", Name: "Admin", Email: "admin@school.ng", Role: models.RoleAdmin}
	bursar := models.User{FirebaseUID: "b", Name: "Bursar", Email: "bursar@school.ng", Role: models.RoleAccountant}
	teacher := models.User{FirebaseUID: "t", Name: "Teacher", Email: "teacher@school.ng", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&bursar).Error)
	require.NoError(t, db.Create(&teacher).Error)

	cache := &recordingCache{}
	h := NewUserPreferenceHandler(db, cache, []models.UserRole{models.RoleAccountant}, discardLogger())

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = middleware.JSONErrorHandler(discardLogger())

	var current *models.User
	g := e.Group("/api/users", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextUser, current)
			return next(c)
		}
	})
	g.GET("/:id/preference", h.GetUserPreference)
	g.PUT("/:id/preference", h.UpdateUserPreference)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		} else {
			req = httptest.NewRequest(method, target, nil)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	current = &bursar
	rec := do(http.MethodGet, "/api/users/2/preference", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"channel":"email"`)

	rec = do(http.MethodPut, "/api/users/2/preference", `{"channel":"whatsapp","whatsapp_target_type":"group"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPut, "/api/users/2/preference", `{"channel":"sms"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPut, "/api/users/2/preference", `{"channel":"whatsapp","whatsapp_target_type":"group","whatsapp_group_id":"120363@g.us"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, cache.calls, 1)

	var pref models.UserNotifPreference
	require.NoError(t, db.Where("user_id = ?", bursar.ID).First(&pref).Error)
	assert.Equal(t, models.NotificationChannelWhatsapp, pref.Channel)
	assert.Equal(t, "120363@g.us", pref.WhatsappGroupID)

	// other users' preferences are admin only
	current = &teacher
	rec = do(http.MethodGet, "/api/users/2/preference", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	current = &admin
	rec = do(http.MethodGet, "/api/users/2/preference", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(http.MethodGet, "/api/users/99/preference", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(http.MethodGet, "/api/users/abc/preference", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
