package cache

import (
	"context"
	"errors"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

// CartCache holds presented snapshots per user. Each user has a version counter that
// Delete advances; a snapshot loaded under an older version is never stored.
type CartCache interface {
	Get(ctx context.Context, userID uint) (*models.CartSnapshot, error)
	Version(ctx context.Context, userID uint) (int64, error)
	// Set stores snap only while the user's version still equals version.
	Set(ctx context.Context, userID uint, version int64, snap *models.CartSnapshot) error
	Delete(ctx context.Context, userID uint) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStale     = errors.New("cart snapshot is stale")
)

// Noop is used when Redis is not configured. Every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, uint) (*models.CartSnapshot, error) { return nil, ErrCacheMiss }

func (Noop) Version(context.Context, uint) (int64, error) { return 0, nil }

func (Noop) Set(context.Context, uint, int64, *models.CartSnapshot) error { return nil }

func (Noop) Delete(context.Context, uint) error { return nil }
