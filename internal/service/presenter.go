package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/resale_cart/internal/cache"
	"github.com/Skotchmaster/resale_cart/internal/logging"
	"github.com/Skotchmaster/resale_cart/internal/models"
)

// presentTimeout bounds a shared load once it no longer follows any one caller's context.
const presentTimeout = 10 * time.Second

// Present builds the cart drawer snapshot with live catalog prices. Concurrent misses for
// the same user share one load, which outlives the caller that started it.
func (s *CartService) Present(ctx context.Context, userID uint) (*models.CartSnapshot, error) {
	v, err, _ := s.sfg.Do(sfKey(userID), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presentTimeout)
		defer cancel()
		return s.present(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CartSnapshot), nil
}

func (s *CartService) present(ctx context.Context, userID uint) (*models.CartSnapshot, error) {
	l := logging.FromContext(ctx)

	snap, err := s.cache.Get(ctx, userID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn("cart_cache_get_error", "user_id", userID, "error", err)
	}

	// The version is read before the rows so a mutation committed during the load
	// makes the Set below a no-op.
	version, verErr := s.cache.Version(ctx, userID)
	if verErr != nil {
		l.Warn("cart_cache_version_error", "user_id", userID, "error", verErr)
	}

	snap, err = s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if verErr != nil {
		return snap, nil
	}

	switch err := s.cache.Set(ctx, userID, version, snap); {
	case errors.Is(err, cache.ErrStale):
		l.Debug("cart_cache_set_skipped", "user_id", userID, "reason", "cart changed during load")
	case err != nil:
		l.Warn("cart_cache_set_error", "user_id", userID, "error", err)
	}
	return snap, nil
}

func (s *CartService) load(ctx context.Context, userID uint) (*models.CartSnapshot, error) {
	lines, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, storageErr("get cart", err)
	}

	snap := &models.CartSnapshot{
		Items: make([]models.CartItemView, 0, len(lines)),
		Total: decimal.Zero,
	}
	if len(lines) == 0 {
		return snap, nil
	}

	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.catalog.Products(ctx, ids)
	if err != nil {
		return nil, storageErr("load products", err)
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			logging.FromContext(ctx).Warn("cart_line_product_missing", "user_id", userID, "cart_id", l.ID, "product_id", l.ProductID)
			continue
		}
		snap.Items = append(snap.Items, models.CartItemView{
			ID:        l.ID,
			ProductID: l.ProductID,
			Name:      p.Name,
			Image:     p.Image,
			Price:     p.Price,
			Quantity:  l.Quantity,
		})
		snap.Total = snap.Total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return snap, nil
}
