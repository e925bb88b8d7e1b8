package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/handlers/auth"
	"storefront/internal/handlers/cart"
	"storefront/internal/handlers/catalog"
	"storefront/internal/handlers/checkout"
	"storefront/internal/handlers/notifications"
	"storefront/internal/handlers/orders"
	"storefront/internal/handlers/upload"
	"storefront/internal/middleware/authz"
	"storefront/internal/middleware/csrf"
	"storefront/internal/models"
	"storefront/internal/webhook"
)

type Deps struct {
	DB                  *gorm.DB
	SessionSecret       []byte
	AuthHandler         *auth.AuthHandler
	ProductHandler      *catalog.ProductHandler
	CartHandler         *cart.CartHandler
	CheckoutHandler     *checkout.CheckoutHandler
	OrderHandler        *orders.OrderHandler
	NotificationHandler *notifications.NotificationHandler
	UploadHandler       *upload.UploadHandler
	WebhookHandler      *webhook.WebhookHandler
}

// Rules is the single route-to-role table consulted by the authorization
// middleware. Routes not listed here are public.
func Rules() authz.Rules {
	return authz.Rules{
		"GET /api/v1/cart":        models.RoleUser,
		"POST /api/v1/cart":       models.RoleUser,
		"DELETE /api/v1/cart":     models.RoleUser,
		"DELETE /api/v1/cart/:id": models.RoleUser,

		"POST /api/v1/checkout":    models.RoleUser,
		"GET /api/v1/orders":       models.RoleUser,
		"GET /api/v1/orders/:id":   models.RoleUser,
		"PATCH /api/v1/orders/:id": models.RoleAdmin,

		"GET /api/v1/notifications":  models.RoleUser,
		"POST /api/v1/notifications": models.RoleAdmin,

		"POST /api/v1/products":       models.RoleAdmin,
		"PUT /api/v1/products/:id":    models.RoleAdmin,
		"DELETE /api/v1/products/:id": models.RoleAdmin,
		"POST /api/v1/variants":       models.RoleAdmin,
		"PUT /api/v1/variants/:id":    models.RoleAdmin,
		"DELETE /api/v1/variants/:id": models.RoleAdmin,
		"POST /api/v1/uploads":        models.RoleAdmin,
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	// The webhook reads the raw signed payload; it sits outside the API group
	// so neither CSRF nor session middleware touches it.
	e.POST("/stripe-webhook", d.WebhookHandler.HandleStripe)

	v1 := e.Group("/api/v1",
		authz.Middleware(d.SessionSecret, Rules()),
		csrf.Middleware(csrf.Config{
			Secure: true,
			// No CSRF token exists yet when a session is first established.
			SkipPaths: []string{
				"/api/v1/auth/signup",
				"/api/v1/auth/login",
				"/api/v1/auth/oauth/google",
				"/api/v1/auth/forgot-password",
				"/api/v1/auth/reset-password",
			},
		}),
	)

	v1.POST("/auth/signup", d.AuthHandler.Signup)
	v1.POST("/auth/login", d.AuthHandler.Login)
	v1.POST("/auth/logout", d.AuthHandler.Logout)
	v1.POST("/auth/oauth/google", d.AuthHandler.OAuthSignIn)
	v1.POST("/auth/forgot-password", d.AuthHandler.ForgotPassword)
	v1.POST("/auth/reset-password", d.AuthHandler.ResetPassword)

	v1.GET("/products", d.ProductHandler.GetProducts)
	v1.GET("/products/:id", d.ProductHandler.GetProduct)
	v1.POST("/products", d.ProductHandler.CreateProduct)
	v1.PUT("/products/:id", d.ProductHandler.UpdateProduct)
	v1.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	v1.POST("/variants", d.ProductHandler.CreateVariant)
	v1.PUT("/variants/:id", d.ProductHandler.UpdateVariant)
	v1.DELETE("/variants/:id", d.ProductHandler.DeleteVariant)

	v1.GET("/cart", d.CartHandler.GetCart)
	v1.POST("/cart", d.CartHandler.AddToCart)
	v1.DELETE("/cart", d.CartHandler.ClearCart)
	v1.DELETE("/cart/:id", d.CartHandler.RemoveFromCart)

	v1.POST("/checkout", d.CheckoutHandler.Checkout)
	v1.GET("/orders", d.OrderHandler.GetOrders)
	v1.GET("/orders/:id", d.OrderHandler.GetOrder)
	v1.PATCH("/orders/:id", d.OrderHandler.CompleteOrder)

	v1.GET("/notifications", d.NotificationHandler.GetNotifications)
	v1.POST("/notifications", d.NotificationHandler.CreateNotification)

	v1.POST("/uploads", d.UploadHandler.Upload)
}
