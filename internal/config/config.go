package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	KAFKA_ADDRESS string
	REDIS_ADDR    string

	SESSION_SECRET string
	RESET_SECRET   string

	// The Google ID-token flow only needs the audience check.
	GOOGLE_CLIENT_ID string

	STRIPE_SECRET         string
	STRIPE_WEBHOOK_SECRET string

	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_USER     string
	SMTP_PASSWORD string
	MAIL_FROM     string

	PUBLIC_BASE_URL string
	UPLOAD_DIR      string
	LOG_LEVEL       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:               os.Getenv("DB_HOST"),
		DB_PORT:               os.Getenv("DB_PORT"),
		DB_USER:               os.Getenv("DB_USER"),
		DB_PASSWORD:           os.Getenv("DB_PASSWORD"),
		DB_NAME:               os.Getenv("DB_NAME"),
		ES_URL:                os.Getenv("ES_URL"),
		ES_USER:               os.Getenv("ES_USER"),
		ES_PASSWORD:           os.Getenv("ES_PASSWORD"),
		KAFKA_ADDRESS:         os.Getenv("KAFKA_ADDRESS"),
		REDIS_ADDR:            os.Getenv("REDIS_ADDR"),
		SESSION_SECRET:        os.Getenv("SESSION_SECRET"),
		RESET_SECRET:          os.Getenv("RESET_SECRET"),
		GOOGLE_CLIENT_ID:      os.Getenv("GOOGLE_CLIENT_ID"),
		STRIPE_SECRET:         os.Getenv("STRIPE_SECRET"),
		STRIPE_WEBHOOK_SECRET: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SMTP_HOST:             os.Getenv("SMTP_HOST"),
		SMTP_PORT:             os.Getenv("SMTP_PORT"),
		SMTP_USER:             os.Getenv("SMTP_USER"),
		SMTP_PASSWORD:         os.Getenv("SMTP_PASSWORD"),
		MAIL_FROM:             os.Getenv("MAIL_FROM"),
		PUBLIC_BASE_URL:       os.Getenv("PUBLIC_BASE_URL"),
		UPLOAD_DIR:            os.Getenv("UPLOAD_DIR"),
		LOG_LEVEL:             os.Getenv("LOG_LEVEL"),
	}

	if config.UPLOAD_DIR == "" {
		config.UPLOAD_DIR = "uploads"
	}

	return config, nil
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER,
		configuration.DB_PASSWORD,
		configuration.DB_HOST,
		configuration.DB_PORT,
		configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.User{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Notification{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
