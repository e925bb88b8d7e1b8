package checkout

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/middleware/authz"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/validate"
)

const (
	// TaxRate is the flat tax applied on top of the recomputed subtotal.
	TaxRate = 0.10
	// TotalEpsilon bounds the tolerated drift between the client-displayed
	// total and the recomputed one.
	TotalEpsilon = 0.01
)

type CheckoutHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	Gateway  payment.Gateway
}

type lineItem struct {
	VariantID uint `json:"variant_id" validate:"required"`
	Qty       int  `json:"qty"        validate:"required,gt=0"`
}

type checkoutRequest struct {
	Items []lineItem `json:"items" validate:"required,min=1,dive"`
	// Total is what the client displayed; it is cross-checked, never trusted.
	Total float64 `json:"total" validate:"required,gt=0"`
}

func (h *CheckoutHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// Checkout turns a submitted cart into a PENDING order and a payment redirect.
// All validation happens before any write; the order insert and the stock
// decrements share one transaction so they commit or roll back together.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	sess := authz.CurrentSession(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	var req checkoutRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	seen := make(map[uint]struct{}, len(req.Items))
	ids := make([]uint, 0, len(req.Items))
	for _, it := range req.Items {
		if _, dup := seen[it.VariantID]; dup {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("variant %d appears more than once", it.VariantID))
		}
		seen[it.VariantID] = struct{}{}
		ids = append(ids, it.VariantID)
	}

	var variants []models.ProductVariant
	if err := h.DB.Where("id IN ? AND is_deleted = ?", ids, false).Find(&variants).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(variants) < len(ids) {
		return echo.NewHTTPError(http.StatusBadRequest, "one or more variants do not exist")
	}

	byID := make(map[uint]models.ProductVariant, len(variants))
	productIDs := make([]uint, 0, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
		productIDs = append(productIDs, v.ProductID)
	}

	var products []models.Product
	if err := h.DB.Where("id IN ? AND status = ?", productIDs, models.ProductActive).Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	titles := make(map[uint]string, len(products))
	for _, p := range products {
		titles[p.ID] = p.Title
	}

	var subtotal float64
	for _, it := range req.Items {
		v := byID[it.VariantID]
		title, active := titles[v.ProductID]
		if !active {
			return echo.NewHTTPError(http.StatusBadRequest, "one or more products are no longer available")
		}
		if v.Stock < it.Qty {
			// Name the product and attributes, not an opaque id.
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
				"not enough stock for %q (%s / %s): %d left, %d requested",
				title, v.ColorName, v.Size, v.Stock, it.Qty))
		}
		subtotal += v.Price * float64(it.Qty)
	}

	tax := round2(subtotal * TaxRate)
	total := round2(subtotal + tax)
	if math.Abs(total-req.Total) > TotalEpsilon {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
			"total mismatch: expected %.2f, got %.2f (your cart may be out of date)",
			total, req.Total))
	}

	var user models.User
	if err := h.DB.First(&user, sess.UserID).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}

	customerID, err := h.Gateway.EnsureCustomer(c.Request().Context(), &user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "payment processor unavailable")
	}
	if user.StripeCustomerID == "" {
		// Persist the mapping once so later orders reuse the same customer.
		if err := h.DB.Model(&user).Update("stripe_customer_id", customerID).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		user.StripeCustomerID = customerID
	}

	order := models.Order{
		UserID:           user.ID,
		StripeCustomerID: customerID,
		Tax:              tax,
		Total:            total,
		PaymentStatus:    models.OrderPending,
	}
	for _, it := range req.Items {
		v := byID[it.VariantID]
		order.Items = append(order.Items, models.OrderItem{
			ProductID: v.ProductID,
			VariantID: v.ID,
			Qty:       it.Qty,
			Price:     v.Price,
			ColorName: v.ColorName,
			ColorCode: v.ColorCode,
			Size:      v.Size,
		})
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for _, it := range req.Items {
			// Guarded decrement: the row-level check re-runs under the
			// transaction, so a concurrent checkout that got there first
			// fails this update instead of driving stock negative.
			res := tx.Model(&models.ProductVariant{}).
				Where("id = ? AND stock >= ?", it.VariantID, it.Qty).
				Update("stock", gorm.Expr("stock - ?", it.Qty))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				v := byID[it.VariantID]
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
					"not enough stock for %q (%s / %s)",
					titles[v.ProductID], v.ColorName, v.Size))
			}
		}
		return nil
	})
	if txErr != nil {
		if he, ok := txErr.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	// The payment session needs a network call, so it stays outside the
	// transaction. A failure past this point leaves a PENDING order with
	// decremented stock; see the reconciliation note in DESIGN.md.
	sessionID, redirectURL, err := h.Gateway.CreateCheckoutSession(c.Request().Context(), &order, order.Items, titles)
	if err != nil {
		c.Logger().Errorf("checkout session error for order %d: %v", order.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start payment")
	}

	if err := h.DB.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("stripe_session_id", sessionID).Error; err != nil {
		c.Logger().Errorf("session id persist error for order %d: %v", order.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Cart rows for the purchased variants are spent.
	if err := h.DB.Where("user_id = ? AND variant_id IN ?", user.ID, ids).
		Delete(&models.CartItem{}).Error; err != nil {
		c.Logger().Errorf("cart cleanup error for order %d: %v", order.ID, err)
	}

	h.publish(c, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  user.ID,
		"total":   order.Total,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"order_id":     order.ID,
		"total":        order.Total,
		"tax":          order.Tax,
		"status":       order.PaymentStatus,
		"checkout_url": redirectURL,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
