package cart

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
	"storefront/internal/validate"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicUserEvents, fmt.Sprint(userID), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", sess.UserID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	var req struct {
		VariantID uint `json:"variant_id" validate:"required"`
		Qty       int  `json:"qty"        validate:"gte=0"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	if req.Qty < 1 {
		req.Qty = 1
	}

	var variant models.ProductVariant
	if err := h.DB.Where("id = ? AND is_deleted = ?", req.VariantID, false).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "variant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var item models.CartItem
	tx := h.DB.Where("user_id = ? AND variant_id = ?", sess.UserID, req.VariantID).First(&item)
	if tx.Error == nil {
		item.Qty += req.Qty
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		item = models.CartItem{UserID: sess.UserID, VariantID: req.VariantID, Qty: req.Qty}
		if err := h.DB.Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	h.publish(c, sess.UserID, map[string]any{
		"type":      "cart_item_added",
		"userID":    sess.UserID,
		"variantID": req.VariantID,
		"qty":       item.Qty,
	})
	return c.JSON(http.StatusOK, item)
}

// RemoveFromCart drops one unit; the row goes away when the last unit goes.
func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, sess.UserID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if item.Qty > 1 {
		item.Qty--
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, sess.UserID, map[string]any{
			"type":   "cart_item_decremented",
			"userID": sess.UserID,
			"itemID": item.ID,
			"qty":    item.Qty,
		})
		return c.JSON(http.StatusOK, item)
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, sess.UserID, map[string]any{
		"type":   "cart_item_removed",
		"userID": sess.UserID,
		"itemID": id,
	})
	return c.JSON(http.StatusOK, echo.Map{"deleted_item": id})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	if err := h.DB.Where("user_id = ?", sess.UserID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, sess.UserID, map[string]any{
		"type":   "cart_cleared",
		"userID": sess.UserID,
	})
	return c.JSON(http.StatusOK, []models.CartItem{})
}
