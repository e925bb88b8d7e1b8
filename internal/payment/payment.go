package payment

import (
	"context"

	"storefront/internal/models"
)

// Gateway is the payment-processor surface the checkout flow needs. The Stripe
// implementation lives in stripe.go; tests swap in a fake.
type Gateway interface {
	// EnsureCustomer returns the processor customer id for the user, creating
	// one if the user has none yet. Persisting the mapping is the caller's job.
	EnsureCustomer(ctx context.Context, user *models.User) (string, error)

	// CreateCheckoutSession opens a hosted checkout for the order and returns
	// the session id and redirect URL. The order id rides along as correlation
	// metadata so the webhook can find its way back.
	CreateCheckoutSession(ctx context.Context, order *models.Order, items []models.OrderItem, titles map[uint]string) (sessionID, url string, err error)
}

// Event is a verified notification from the processor, reduced to what the
// reconciler needs.
type Event struct {
	ID        string
	Type      string
	SessionID string
	OrderID   string
}

const EventCheckoutCompleted = "checkout.session.completed"

// Verifier checks a raw webhook payload against its signature header before
// any of its content is trusted.
type Verifier interface {
	Verify(payload []byte, signature string) (Event, error)
}
