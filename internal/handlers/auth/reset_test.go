package auth

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"storefront/internal/hash"
	"storefront/internal/models"
	"storefront/internal/session"
)

func seedUser(t *testing.T, h *AuthHandler) models.User {
	t.Helper()
	pwHash, err := hash.HashPassword("old-password")
	require.NoError(t, err)
	user := models.User{
		FullName: "Test User", Email: "test@example.com",
		PasswordHash: pwHash, Role: models.RoleUser,
	}
	require.NoError(t, h.DB.Create(&user).Error)
	return user
}

func TestForgotPasswordSendsMail(t *testing.T) {
	h, m := newHandler(t)
	seedUser(t, h)

	rec, err := doJSON(t, h.ForgotPassword, "/auth/forgot-password", map[string]any{
		"email": "test@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, m.sent, 1)
	require.Equal(t, "test@example.com", m.sent[0])
	require.Contains(t, m.urls[0], "/reset-password?token=")
	// The token must never leak into the HTTP response.
	require.NotContains(t, rec.Body.String(), "token=")
}

func TestForgotPasswordUnknownEmailIndistinguishable(t *testing.T) {
	h, m := newHandler(t)
	seedUser(t, h)

	known, err := doJSON(t, h.ForgotPassword, "/auth/forgot-password", map[string]any{
		"email": "test@example.com",
	})
	require.NoError(t, err)

	unknown, err := doJSON(t, h.ForgotPassword, "/auth/forgot-password", map[string]any{
		"email": "nobody@example.com",
	})
	require.NoError(t, err)

	require.Equal(t, known.Code, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())
	require.Len(t, m.sent, 1)
}

func TestResetPassword(t *testing.T) {
	h, _ := newHandler(t)
	user := seedUser(t, h)

	token, err := session.SignResetToken(user.Email, user.ResetTokenVersion, h.ResetSecret)
	require.NoError(t, err)

	rec, err := doJSON(t, h.ResetPassword, "/auth/reset-password", map[string]any{
		"token":    token,
		"password": "new-password",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.User
	require.NoError(t, h.DB.First(&reloaded, user.ID).Error)
	require.True(t, hash.CheckPassword(reloaded.PasswordHash, "new-password"))
	require.Equal(t, user.ResetTokenVersion+1, reloaded.ResetTokenVersion)
}

func TestResetPasswordTokenSingleUse(t *testing.T) {
	h, _ := newHandler(t)
	user := seedUser(t, h)

	token, err := session.SignResetToken(user.Email, user.ResetTokenVersion, h.ResetSecret)
	require.NoError(t, err)

	_, err = doJSON(t, h.ResetPassword, "/auth/reset-password", map[string]any{
		"token":    token,
		"password": "new-password",
	})
	require.NoError(t, err)

	// Replaying the same token must fail: the version bump retired it.
	_, err = doJSON(t, h.ResetPassword, "/auth/reset-password", map[string]any{
		"token":    token,
		"password": "another-password",
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Contains(t, he.Message, "already used")

	var reloaded models.User
	require.NoError(t, h.DB.First(&reloaded, user.ID).Error)
	require.True(t, hash.CheckPassword(reloaded.PasswordHash, "new-password"))
}

func TestResetPasswordGarbageToken(t *testing.T) {
	h, _ := newHandler(t)
	seedUser(t, h)

	_, err := doJSON(t, h.ResetPassword, "/auth/reset-password", map[string]any{
		"token":    "not-a-jwt",
		"password": "new-password",
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}
