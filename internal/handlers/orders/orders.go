package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/middleware/authz"
	"storefront/internal/models"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *OrderHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// GetOrders lists the caller's orders; admins see everyone's.
func (h *OrderHandler) GetOrders(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	q := h.DB.Preload("Items").Order("id DESC")
	if sess.Role != models.RoleAdmin {
		q = q.Where("user_id = ?", sess.UserID)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.DB.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if sess.Role != models.RoleAdmin && order.UserID != sess.UserID {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, order)
}

// CompleteOrder is the only path to COMPLETED, and only from PAID.
func (h *OrderHandler) CompleteOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	// Guarded transition, same shape as the webhook's PENDING→PAID update:
	// the WHERE clause arbitrates concurrent attempts, not a prior read.
	res := h.DB.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, models.OrderPaid).
		Update("payment_status", models.OrderCompleted)
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("order is %s, only PAID orders can be completed", order.PaymentStatus))
	}

	h.publish(c, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_completed",
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, order)
}
