package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"storefront/internal/models"
)

type StripeGateway struct {
	BaseURL string // public base url used for success/cancel redirects
}

func NewStripeGateway(secretKey, baseURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{BaseURL: baseURL}
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FullName),
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, order *models.Order, items []models.OrderItem, titles map[uint]string) (string, string, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items)+1)
	for _, it := range items {
		name := titles[it.ProductID]
		if name == "" {
			name = fmt.Sprintf("product #%d", it.ProductID)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(toCents(it.Price)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(name),
					Description: stripe.String(fmt.Sprintf("%s / %s", it.ColorName, it.Size)),
				},
			},
			Quantity: stripe.Int64(int64(it.Qty)),
		})
	}
	lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String("usd"),
			UnitAmount: stripe.Int64(toCents(order.Tax)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String("Tax"),
			},
		},
		Quantity: stripe.Int64(1),
	})

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(order.StripeCustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(g.BaseURL + "/checkout/success"),
		CancelURL:  stripe.String(g.BaseURL + "/checkout/cancel"),
	}
	params.Context = ctx
	params.AddMetadata("order_id", fmt.Sprint(order.ID))

	s, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return s.ID, s.URL, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type StripeVerifier struct {
	WebhookSecret string
}

func (v *StripeVerifier) Verify(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, signature, v.WebhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("stripe: signature verification failed: %w", err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("stripe: decode session: %w", err)
	}
	out.SessionID = sess.ID
	out.OrderID = sess.Metadata["order_id"]
	return out, nil
}
