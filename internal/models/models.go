package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductStatusAvailable = "available"
	ProductStatusSold      = "sold"
	ProductStatusRemoved   = "removed"
)

// Product is a marketplace listing. The catalog owns these rows; the cart only reads them.
type Product struct {
	ID       uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	SellerID uint            `gorm:"index;not null"                    json:"seller_id"`
	Name     string          `gorm:"not null"                          json:"name"`
	Image    string          `gorm:"not null;default:''"               json:"image"`
	Price    decimal.Decimal `gorm:"type:numeric(14,2);not null"       json:"price"`
	Status   string          `gorm:"not null;default:available;index"  json:"status"`
}

func (Product) TableName() string {
	return "products"
}

// CartLine is one user's intended quantity of one listing.
type CartLine struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                         json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"       json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_user_product;not null;index" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity > 0"            json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartLine) TableName() string {
	return "cart"
}

// CartItemView is a cart line joined with its live listing.
type CartItemView struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartSnapshot is what the cart drawer renders. Total is exact.
type CartSnapshot struct {
	Items []CartItemView  `json:"items"`
	Total decimal.Decimal `json:"total"`
}
