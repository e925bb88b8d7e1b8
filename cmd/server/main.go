package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/events"
	authhandlers "storefront/internal/handlers/auth"
	"storefront/internal/handlers/cart"
	"storefront/internal/handlers/catalog"
	"storefront/internal/handlers/checkout"
	"storefront/internal/handlers/notifications"
	"storefront/internal/handlers/orders"
	"storefront/internal/handlers/upload"
	"storefront/internal/logging"
	"storefront/internal/mailer"
	"storefront/internal/payment"
	"storefront/internal/search"
	httpserver "storefront/internal/transport/http"
	"storefront/internal/validate"
	"storefront/internal/webhook"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	sessionSecret := []byte(configuration.SESSION_SECRET)
	resetSecret := []byte(configuration.RESET_SECRET)

	prod := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := search.NewClient(configuration)
	if err != nil {
		logger.Warn("elasticsearch unavailable, search falls back to the database", "error", err)
		esClient = nil
	}

	var redisClient *redis.Client
	webhookHandler := &webhook.WebhookHandler{DB: db, Producer: prod}
	if configuration.REDIS_ADDR != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: configuration.REDIS_ADDR})
		webhookHandler.Cache = redisClient
	}

	gateway := payment.NewStripeGateway(configuration.STRIPE_SECRET, configuration.PUBLIC_BASE_URL)
	webhookHandler.Verifier = &payment.StripeVerifier{WebhookSecret: configuration.STRIPE_WEBHOOK_SECRET}

	smtp, err := mailer.NewSMTPSender(configuration)
	if err != nil {
		log.Fatalf("mailer init error: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Static("/uploads", configuration.UPLOAD_DIR)

	deps := httpserver.Deps{
		DB:            db,
		SessionSecret: sessionSecret,
		AuthHandler: &authhandlers.AuthHandler{
			DB:            db,
			SessionSecret: sessionSecret,
			ResetSecret:   resetSecret,
			Producer:      prod,
			Gateway:       gateway,
			Mailer:        smtp,
			OAuth:         &authhandlers.GoogleVerifier{ClientID: configuration.GOOGLE_CLIENT_ID},
			BaseURL:       configuration.PUBLIC_BASE_URL,
		},
		ProductHandler:      &catalog.ProductHandler{DB: db, Producer: prod, ES: esClient},
		CartHandler:         &cart.CartHandler{DB: db, Producer: prod},
		CheckoutHandler:     &checkout.CheckoutHandler{DB: db, Producer: prod, Gateway: gateway},
		OrderHandler:        &orders.OrderHandler{DB: db, Producer: prod},
		NotificationHandler: &notifications.NotificationHandler{DB: db},
		UploadHandler:       &upload.UploadHandler{Dir: configuration.UPLOAD_DIR, BaseURL: configuration.PUBLIC_BASE_URL},
		WebhookHandler:      webhookHandler,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
