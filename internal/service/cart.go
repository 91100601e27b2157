package service

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Skotchmaster/resale_cart/internal/cache"
	"github.com/Skotchmaster/resale_cart/internal/catalog"
	"github.com/Skotchmaster/resale_cart/internal/logging"
	"github.com/Skotchmaster/resale_cart/internal/models"
)

const (
	EventItemAdded   = "cart_item_added"
	EventItemUpdated = "cart_item_updated"
	EventItemRemoved = "cart_item_removed"
	EventCleared     = "cart_cleared"
)

// Store is the persistent cart. Missing or foreign lines surface as gorm.ErrRecordNotFound.
type Store interface {
	AddItem(ctx context.Context, userID, productID uint) (models.CartLine, error)
	SetQuantity(ctx context.Context, userID, lineID uint, quantity int) (models.CartLine, bool, error)
	RemoveItem(ctx context.Context, userID, lineID uint) error
	GetCart(ctx context.Context, userID uint) ([]models.CartLine, error)
	Count(ctx context.Context, userID uint) (int64, error)
	ClearCart(ctx context.Context, userID uint) (int64, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Deps struct {
	Repo        Store
	Catalog     catalog.Catalog
	Cache       cache.CartCache
	Producer    Publisher
	EventsTopic string
}

// CartService applies the cart rules. Every method takes the user id resolved from the
// session, never one supplied by the client.
type CartService struct {
	repo        Store
	catalog     catalog.Catalog
	cache       cache.CartCache
	producer    Publisher
	eventsTopic string

	sfg singleflight.Group
}

func NewCartService(d Deps) *CartService {
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.EventsTopic == "" {
		d.EventsTopic = "cart_events"
	}
	return &CartService{
		repo:        d.Repo,
		catalog:     d.Catalog,
		cache:       d.Cache,
		producer:    d.Producer,
		eventsTopic: d.EventsTopic,
	}
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uint) (models.CartLine, error) {
	if productID == 0 {
		return models.CartLine{}, ErrProductNotFound
	}

	a, err := s.catalog.CheckAvailable(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return models.CartLine{}, ErrProductNotFound
	case err != nil:
		return models.CartLine{}, storageErr("check product", err)
	case !a.Available:
		return models.CartLine{}, ErrProductUnavailable
	case a.OwnerID == userID:
		return models.CartLine{}, ErrSelfPurchase
	}

	line, err := s.repo.AddItem(ctx, userID, productID)
	if err != nil {
		return models.CartLine{}, storageErr("add item", err)
	}

	s.invalidate(ctx, userID)
	s.publish(ctx, userID, map[string]any{
		"type":       EventItemAdded,
		"userID":     userID,
		"productID":  productID,
		"cartLineID": line.ID,
		"quantity":   line.Quantity,
	})
	return line, nil
}

// SetQuantity overwrites the line's quantity. A quantity below 1 removes the line and
// reports removed=true.
func (s *CartService) SetQuantity(ctx context.Context, userID, lineID uint, quantity int) (line models.CartLine, removed bool, err error) {
	if lineID == 0 {
		return models.CartLine{}, false, ErrNotFound
	}

	line, removed, err = s.repo.SetQuantity(ctx, userID, lineID, quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CartLine{}, false, ErrNotFound
	}
	if err != nil {
		return models.CartLine{}, false, storageErr("set quantity", err)
	}

	s.invalidate(ctx, userID)
	if removed {
		s.publish(ctx, userID, map[string]any{
			"type":       EventItemRemoved,
			"userID":     userID,
			"cartLineID": lineID,
		})
		return models.CartLine{}, true, nil
	}
	s.publish(ctx, userID, map[string]any{
		"type":       EventItemUpdated,
		"userID":     userID,
		"productID":  line.ProductID,
		"cartLineID": line.ID,
		"quantity":   line.Quantity,
	})
	return line, false, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID uint) error {
	if lineID == 0 {
		return ErrNotFound
	}

	err := s.repo.RemoveItem(ctx, userID, lineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("remove item", err)
	}

	s.invalidate(ctx, userID)
	s.publish(ctx, userID, map[string]any{
		"type":       EventItemRemoved,
		"userID":     userID,
		"cartLineID": lineID,
	})
	return nil
}

func (s *CartService) GetCart(ctx context.Context, userID uint) ([]models.CartLine, error) {
	lines, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, storageErr("get cart", err)
	}
	return lines, nil
}

func (s *CartService) GetCartCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.Count(ctx, userID)
	if err != nil {
		return 0, storageErr("count cart", err)
	}
	return n, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID uint) error {
	n, err := s.repo.ClearCart(ctx, userID)
	if err != nil {
		return storageErr("clear cart", err)
	}

	s.invalidate(ctx, userID)
	if n > 0 {
		s.publish(ctx, userID, map[string]any{
			"type":    EventCleared,
			"userID":  userID,
			"removed": n,
		})
	}
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID uint) {
	s.sfg.Forget(sfKey(userID))
	if err := s.cache.Delete(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("cart_cache_invalidate_error", "user_id", userID, "error", err)
	}
}

func (s *CartService) publish(ctx context.Context, userID uint, event map[string]any) {
	if s.producer == nil {
		return
	}
	key := strconv.FormatUint(uint64(userID), 10)
	if err := s.producer.PublishEvent(ctx, s.eventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("cart_event_publish_error", "type", event["type"], "user_id", userID, "error", err)
	}
}

func sfKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
