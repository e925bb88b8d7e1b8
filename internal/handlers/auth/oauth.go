package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/models"
	"storefront/internal/validate"
)

// OAuthVerifier turns a third-party credential into a verified identity.
type OAuthVerifier interface {
	Verify(ctx context.Context, idToken string) (email, name string, err error)
}

// GoogleVerifier validates a Google ID token against the tokeninfo endpoint
// and checks the audience matches our client id.
type GoogleVerifier struct {
	ClientID string
	Client   *http.Client
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (string, string, error) {
	httpClient := g.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := "https://oauth2.googleapis.com/tokeninfo?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("google tokeninfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("google tokeninfo: status %d", resp.StatusCode)
	}

	var info struct {
		Aud           string `json:"aud"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", "", fmt.Errorf("google tokeninfo: decode: %w", err)
	}
	if info.Aud != g.ClientID {
		return "", "", errors.New("google tokeninfo: audience mismatch")
	}
	if info.EmailVerified != "true" || info.Email == "" {
		return "", "", errors.New("google tokeninfo: email not verified")
	}
	return info.Email, info.Name, nil
}

// OAuthSignIn links or creates an account for a verified Google identity.
// A user who already protected their account with a password is refused here;
// linking an OAuth identity onto it would be a silent account takeover.
func (h *AuthHandler) OAuthSignIn(c echo.Context) error {
	var req struct {
		IDToken  string `json:"id_token" validate:"required"`
		Remember bool   `json:"remember"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	email, name, err := h.OAuth.Verify(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not verify identity")
	}

	var user models.User
	err = h.DB.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.PasswordHash != "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				"this email is registered with a password, use password login")
		}
		if name != "" && user.FullName != name {
			user.FullName = name
			if err := h.DB.Save(&user).Error; err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			FullName: name,
			Email:    email,
			Role:     models.RoleUser,
		}
		if err := h.DB.Create(&user).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.ensureStripeCustomer(c, &user); err != nil {
		c.Logger().Errorf("stripe customer error: %v", err)
	}

	return h.issueSession(c, &user, req.Remember, "user_oauth_signed_in")
}

// ensureStripeCustomer lazily creates the payment-processor mapping and
// persists it so later orders reuse the same customer.
func (h *AuthHandler) ensureStripeCustomer(c echo.Context, user *models.User) error {
	if user.StripeCustomerID != "" || h.Gateway == nil {
		return nil
	}
	id, err := h.Gateway.EnsureCustomer(c.Request().Context(), user)
	if err != nil {
		return err
	}
	user.StripeCustomerID = id
	return h.DB.Model(user).Update("stripe_customer_id", id).Error
}
