package models

import (
	"time"
)

const (
	ProductActive   = "ACTIVE"
	ProductInactive = "INACTIVE"

	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderCompleted = "COMPLETED"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Product is soft-deleted via Status, never removed from the table.
type Product struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string           `gorm:"not null"                 json:"title"`
	Status    string           `gorm:"not null;default:ACTIVE"  json:"status"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID"     json:"variants,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// The (product, color, size) combination is unique among live variants only;
// soft-deleted rows may repeat it, so the check lives in the handler, not in a
// database unique index.
type ProductVariant struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"            json:"id"`
	ProductID uint    `gorm:"not null;index"                      json:"product_id"`
	ColorName string  `gorm:"not null"                            json:"color_name"`
	ColorCode string  `gorm:"not null"                            json:"color_code"`
	Size      string  `gorm:"not null"                            json:"size"`
	Stock     int     `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Price     float64 `gorm:"not null"                            json:"price"`
	Image     string  `json:"image"`
	IsDeleted bool    `gorm:"not null;default:false"              json:"is_deleted"`
}

type User struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName         string `gorm:"not null"                 json:"fullname"`
	Email            string `gorm:"unique;not null"          json:"email"`
	PasswordHash     string `json:"-"` // empty for OAuth-only accounts
	Role             string `gorm:"not null;default:user"    json:"role"`
	StripeCustomerID string `json:"-"`
	// ResetTokenVersion invalidates every previously issued reset token when bumped.
	ResetTokenVersion int `gorm:"not null;default:0" json:"-"`
}

type Order struct {
	ID               uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint        `gorm:"index;not null"           json:"user_id"`
	StripeCustomerID string      `json:"-"`
	Tax              float64     `gorm:"not null"                 json:"tax"`
	Total            float64     `gorm:"not null"                 json:"total"`
	PaymentStatus    string      `gorm:"not null;default:PENDING" json:"payment_status"`
	StripeSessionID  string      `json:"-"`
	Items            []OrderItem `gorm:"foreignKey:OrderID"       json:"items,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// OrderItem snapshots price and variant attributes at sale time; live catalog
// edits must not change past orders.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"index;not null"           json:"order_id"`
	ProductID uint    `gorm:"not null"                 json:"product_id"`
	VariantID uint    `gorm:"not null"                 json:"variant_id"`
	Qty       int     `gorm:"not null"                 json:"qty"`
	Price     float64 `gorm:"not null"                 json:"price"`
	ColorName string  `json:"color_name"`
	ColorCode string  `json:"color_code"`
	Size      string  `json:"size"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint `gorm:"index;not null"           json:"user_id"`
	VariantID uint `gorm:"not null"                 json:"variant_id"`
	Qty       int  `gorm:"default:1;check:qty > 0"  json:"qty"`
}

// Notification is append-only: no update or delete path exists.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	Message   string    `gorm:"not null"                 json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
