// Package catalog answers the cart's questions about listings: does it exist, can it be
// bought, who sells it, and what it looks like for display.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("catalog unavailable")
)

type Availability struct {
	Exists    bool
	Available bool
	OwnerID   uint
}

type Catalog interface {
	// CheckAvailable returns ErrProductNotFound when no listing has this id.
	CheckAvailable(ctx context.Context, productID uint) (Availability, error)
	// Products returns the listings that exist among ids. Missing ids are absent from the map.
	Products(ctx context.Context, ids []uint) (map[uint]models.Product, error)
}

func availabilityOf(p models.Product) Availability {
	return Availability{
		Exists:    true,
		Available: p.Status == models.ProductStatusAvailable,
		OwnerID:   p.SellerID,
	}
}

// GormCatalog reads the products table in the shared database.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) CheckAvailable(ctx context.Context, productID uint) (Availability, error) {
	var p models.Product
	err := c.db.WithContext(ctx).
		Select("id", "seller_id", "status").
		Where("id = ?", productID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Availability{}, ErrProductNotFound
	}
	if err != nil {
		return Availability{}, fmt.Errorf("select product %d: %w", productID, err)
	}
	return availabilityOf(p), nil
}

func (c *GormCatalog) Products(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Product
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}
