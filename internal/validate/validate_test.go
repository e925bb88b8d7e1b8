package validate

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Age      int    `validate:"gte=0"`
}

func TestValidateOK(t *testing.T) {
	v := New()
	require.NoError(t, v.Validate(&signupForm{
		Email:    "test@example.com",
		Password: "password123",
	}))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := New()
	err := v.Validate(&signupForm{Email: "not-an-email", Password: "short", Age: -1})

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	body, ok := he.Message.(map[string]any)
	require.True(t, ok, "expected structured message")
	require.Equal(t, "error", body["status"])

	msgs, ok := body["errors"].([]string)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	require.Contains(t, msgs[0], "email")
	require.Contains(t, msgs[1], "at least 8")
	require.Contains(t, msgs[2], "0 or more")
}
