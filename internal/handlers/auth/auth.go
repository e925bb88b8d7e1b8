package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/hash"
	"storefront/internal/mailer"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/session"
	"storefront/internal/validate"
)

type AuthHandler struct {
	DB            *gorm.DB
	SessionSecret []byte
	ResetSecret   []byte
	Producer      *events.Producer
	Gateway       payment.Gateway
	Mailer        mailer.Sender
	OAuth         OAuthVerifier
	BaseURL       string
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req struct {
		FullName string `json:"fullname" validate:"required,min=2"`
		Email    string `json:"email"    validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	user := models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"    validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Remember bool   `json:"remember"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	// OAuth-only accounts have no password to check against.
	if user.PasswordHash == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	return h.issueSession(c, &user, req.Remember, "user_logged_in")
}

func (h *AuthHandler) issueSession(c echo.Context, user *models.User, remember bool, eventType string) error {
	token, exp, err := session.SignSessionToken(user.ID, user.FullName, user.Email, user.Role, remember, h.SessionSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create session")
	}

	c.SetCookie(CreateCookie(session.SessionCookie, token, "/", exp))

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   eventType,
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"id":       user.ID,
		"fullname": user.FullName,
		"email":    user.Email,
		"role":     user.Role,
		"is_admin": user.Role == models.RoleAdmin,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie(session.SessionCookie, "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
