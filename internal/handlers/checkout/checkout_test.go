package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/events"
	"storefront/internal/middleware/authz"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/validate"
)

type fakeGateway struct {
	customerCalls int
	sessionCalls  int
	failSession   bool
	lastMetadata  string
}

func (f *fakeGateway) EnsureCustomer(_ context.Context, user *models.User) (string, error) {
	f.customerCalls++
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	return "cus_test", nil
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, order *models.Order, _ []models.OrderItem, _ map[uint]string) (string, string, error) {
	f.sessionCalls++
	if f.failSession {
		return "", "", fmt.Errorf("stripe unreachable")
	}
	f.lastMetadata = fmt.Sprint(order.ID)
	return "cs_test_123", "https://checkout.stripe.test/cs_test_123", nil
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.ProductVariant{}, &models.User{},
		&models.CartItem{}, &models.Order{}, &models.OrderItem{}, &models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) models.ProductVariant {
	t.Helper()

	user := models.User{FullName: "Test User", Email: "buyer@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)

	prod := models.Product{Title: "Plain Tee", Status: models.ProductActive}
	require.NoError(t, db.Create(&prod).Error)

	variant := models.ProductVariant{
		ProductID: prod.ID,
		ColorName: "Black",
		ColorCode: "#000",
		Size:      "M",
		Stock:     5,
		Price:     10.00,
	}
	require.NoError(t, db.Create(&variant).Error)
	return variant
}

func doCheckout(t *testing.T, h *CheckoutHandler, body any) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	e.Validator = validate.New()
	bodyBytes, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(bodyBytes))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authz.SetSession(c, &session.Session{UserID: 1, Role: models.RoleUser})
	return rec, h.Checkout(c)
}

func TestCheckoutSuccess(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	gw := &fakeGateway{}
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: gw}

	rec, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": variant.ID, "qty": 2}},
		"total": 22.00,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "https://checkout.stripe.test/cs_test_123", resp["checkout_url"])
	require.InDelta(t, 22.00, resp["total"], 0.001)
	require.InDelta(t, 2.00, resp["tax"], 0.001)
	require.Equal(t, models.OrderPending, resp["status"])

	var reloaded models.ProductVariant
	require.NoError(t, db.First(&reloaded, variant.ID).Error)
	require.Equal(t, 3, reloaded.Stock)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order).Error)
	require.Equal(t, models.OrderPending, order.PaymentStatus)
	require.Equal(t, "cs_test_123", order.StripeSessionID)
	require.Equal(t, "cus_test", order.StripeCustomerID)
	require.Len(t, order.Items, 1)
	require.Equal(t, 2, order.Items[0].Qty)
	require.InDelta(t, 10.00, order.Items[0].Price, 0.001)
	require.Equal(t, "Black", order.Items[0].ColorName)
	require.Equal(t, "M", order.Items[0].Size)

	var user models.User
	require.NoError(t, db.First(&user, 1).Error)
	require.Equal(t, "cus_test", user.StripeCustomerID)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: &fakeGateway{}}

	_, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": variant.ID, "qty": 10}},
		"total": 110.00,
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Contains(t, fmt.Sprint(he.Message), "Plain Tee")
	require.Contains(t, fmt.Sprint(he.Message), "Black")

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)

	var reloaded models.ProductVariant
	require.NoError(t, db.First(&reloaded, variant.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
}

func TestCheckoutDuplicateVariant(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: &fakeGateway{}}

	_, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{
			{"variant_id": variant.ID, "qty": 1},
			{"variant_id": variant.ID, "qty": 2},
		},
		"total": 33.00,
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCheckoutTotalMismatch(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: &fakeGateway{}}

	_, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": variant.ID, "qty": 2}},
		"total": 20.00, // stale client price, real total is 22.00
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Contains(t, fmt.Sprint(he.Message), "total mismatch")

	var reloaded models.ProductVariant
	require.NoError(t, db.First(&reloaded, variant.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
}

func TestCheckoutUnknownVariant(t *testing.T) {
	db := initTestDB(t)
	seedCatalog(t, db)
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: &fakeGateway{}}

	_, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": 999, "qty": 1}},
		"total": 11.00,
	})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCheckoutEpsilonTolerated(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: &fakeGateway{}}

	rec, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": variant.ID, "qty": 2}},
		"total": 22.005, // within the 0.01 tolerance
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutReusesStripeCustomer(t *testing.T) {
	db := initTestDB(t)
	variant := seedCatalog(t, db)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", 1).
		Update("stripe_customer_id", "cus_existing").Error)

	gw := &fakeGateway{}
	h := &CheckoutHandler{DB: db, Producer: &events.Producer{}, Gateway: gw}

	rec, err := doCheckout(t, h, map[string]any{
		"items": []map[string]any{{"variant_id": variant.ID, "qty": 1}},
		"total": 11.00,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var order models.Order
	require.NoError(t, db.First(&order).Error)
	require.Equal(t, "cus_existing", order.StripeCustomerID)
}
