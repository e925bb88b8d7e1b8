package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payment"
)

const (
	SignatureHeader = "Stripe-Signature"

	dedupKeyPrefix = "stripe:event:"
	dedupTTL       = 24 * time.Hour
)

// EventCache is the slice of the redis client the reconciler uses for
// processed-event bookkeeping. *redis.Client satisfies it.
type EventCache interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type WebhookHandler struct {
	DB       *gorm.DB
	Verifier payment.Verifier
	Cache    EventCache // optional; dedup falls back to the status guard
	Producer *events.Producer
}

// HandleStripe consumes payment-processor notifications. The signature is
// verified against the raw body before anything is parsed or trusted. After
// verification the handler always acknowledges: a non-2xx would make the
// processor retry forever over a problem retries cannot fix.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing signature header")
	}

	event, err := h.Verifier.Verify(payload, signature)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "signature verification failed")
	}

	if event.Type != payment.EventCheckoutCompleted {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	if event.OrderID == "" {
		// A payment went through with no order to reconcile. Ack so the
		// processor stops retrying, but make noise: this is an anomaly
		// someone should look at.
		c.Logger().Warnf("stripe event %s: checkout completed without order_id metadata (session %s)",
			event.ID, event.SessionID)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	if seen, err := h.alreadySeen(c.Request().Context(), event.ID); err != nil {
		c.Logger().Errorf("webhook dedup error: %v", err)
	} else if seen {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	orderID, err := strconv.ParseUint(event.OrderID, 10, 64)
	if err != nil {
		c.Logger().Warnf("stripe event %s: malformed order_id %q", event.ID, event.OrderID)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	// Only PENDING moves to PAID; re-delivery of the same event finds nothing
	// to update and the handler stays idempotent even without a cache.
	res := h.DB.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.OrderPending).
		Update("payment_status", models.OrderPaid)
	if res.Error != nil {
		// Do not mark the event seen: the processor's retry must reach the
		// update again once the database recovers.
		c.Logger().Errorf("stripe event %s: order update failed: %v", event.ID, res.Error)
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	h.markSeen(c, event.ID)

	if res.RowsAffected == 1 {
		h.notifyPaid(c, uint(orderID))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) alreadySeen(ctx context.Context, eventID string) (bool, error) {
	if h.Cache == nil {
		return false, nil
	}
	n, err := h.Cache.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// markSeen runs only after the order row has been settled, so a transient
// update failure leaves the retry path open.
func (h *WebhookHandler) markSeen(c echo.Context, eventID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(c.Request().Context(), dedupKeyPrefix+eventID, 1, dedupTTL).Err(); err != nil {
		c.Logger().Errorf("webhook dedup mark error: %v", err)
	}
}

func (h *WebhookHandler) notifyPaid(c echo.Context, orderID uint) {
	var order models.Order
	if err := h.DB.First(&order, orderID).Error; err != nil {
		c.Logger().Errorf("order %d reload failed: %v", orderID, err)
		return
	}

	notif := models.Notification{
		UserID:  order.UserID,
		Message: fmt.Sprintf("Payment received for order #%d", orderID),
	}
	if err := h.DB.Create(&notif).Error; err != nil {
		c.Logger().Errorf("notification create failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, fmt.Sprint(orderID), map[string]any{
		"type":    "order_paid",
		"orderID": orderID,
		"userID":  order.UserID,
	}); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
