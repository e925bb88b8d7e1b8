package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookie = "session"

	sessionShortTTL = 24 * time.Hour
	sessionLongTTL  = 30 * 24 * time.Hour
	resetTokenTTL   = time.Hour
)

// Session is the identity projected from a token on every request. Expired is
// set instead of failing so callers can treat the request as logged out.
type Session struct {
	UserID    uint
	Name      string
	Email     string
	Role      string
	ExpiresAt time.Time
	Expired   bool
}

func SignSessionToken(userID uint, name, email, role string, remember bool, secret []byte) (string, time.Time, error) {
	ttl := sessionShortTTL
	if remember {
		ttl = sessionLongTTL
	}
	exp := time.Now().Add(ttl)

	claims := jwt.MapClaims{
		"sub":   float64(userID),
		"name":  name,
		"email": email,
		"role":  role,
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseSession verifies the signature but not the expiry: an expired token
// still yields a Session, flagged Expired, never a silently extended one.
func ParseSession(raw string, secret []byte) (*Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid session claims")
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid subject claim")
	}
	expRaw, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid expiry claim")
	}

	s := &Session{
		UserID:    uint(sub),
		ExpiresAt: time.Unix(int64(expRaw), 0),
	}
	s.Name, _ = claims["name"].(string)
	s.Email, _ = claims["email"].(string)
	s.Role, _ = claims["role"].(string)
	s.Expired = time.Now().After(s.ExpiresAt)
	return s, nil
}

// SignResetToken binds the user's email to their current reset-token version.
// Bumping the version on a successful reset makes every outstanding token
// stale, including the one just used; nothing is stored server-side.
func SignResetToken(email string, version int, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"email": email,
		"ver":   float64(version),
		"exp":   time.Now().Add(resetTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func ParseResetToken(raw string, secret []byte) (email string, version int, err error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", 0, fmt.Errorf("invalid reset token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", 0, fmt.Errorf("invalid reset claims")
	}
	email, ok = claims["email"].(string)
	if !ok {
		return "", 0, fmt.Errorf("invalid email claim")
	}
	verRaw, ok := claims["ver"].(float64)
	if !ok {
		return "", 0, fmt.Errorf("invalid version claim")
	}
	return email, int(verRaw), nil
}
