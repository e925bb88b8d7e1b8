package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/hash"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/validate"
)

// genericResetMessage is returned whether or not the email exists, so the
// endpoint cannot be used to probe which addresses are registered.
const genericResetMessage = "if the email is registered, a reset link has been sent"

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	var user models.User
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"message": genericResetMessage})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, err := session.SignResetToken(user.Email, user.ResetTokenVersion, h.ResetSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create reset token")
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", h.BaseURL, url.QueryEscape(token))
	if err := h.Mailer.SendPasswordReset(user.Email, resetURL); err != nil {
		c.Logger().Errorf("reset mail error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not send reset mail")
	}

	// The token travels only by mail, never in the response.
	return c.JSON(http.StatusOK, echo.Map{"message": genericResetMessage})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"    validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	email, version, err := session.ParseResetToken(req.Token, h.ResetSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired reset token")
	}

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired reset token")
	}

	// A token is single-use: the version it carries must match exactly, and the
	// bump below retires it together with every other outstanding token.
	if version != user.ResetTokenVersion {
		return echo.NewHTTPError(http.StatusBadRequest, "reset token already used")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.DB.Model(&user).Updates(map[string]any{
		"password_hash":       pwHash,
		"reset_token_version": gorm.Expr("reset_token_version + 1"),
	}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_password_reset",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
