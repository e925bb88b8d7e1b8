package notifications

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/middleware/authz"
	"storefront/internal/models"
	"storefront/internal/validate"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	var items []models.Notification
	if err := h.DB.Where("user_id = ?", sess.UserID).Order("id DESC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// CreateNotification is admin-only; users never write their own feed.
func (h *NotificationHandler) CreateNotification(c echo.Context) error {
	var req struct {
		UserID  uint   `json:"user_id" validate:"required"`
		Message string `json:"message" validate:"required"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	notif := models.Notification{UserID: req.UserID, Message: req.Message}
	if err := h.DB.Create(&notif).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, notif)
}
