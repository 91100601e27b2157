package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Breaker fails fast with ErrUnavailable while the wrapped catalog keeps erroring.
// A missing product is an answer, not a failure, and never trips it.
type Breaker struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(next Catalog, s BreakerSettings, log *slog.Logger) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker_state_changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) CheckAvailable(ctx context.Context, productID uint) (Availability, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.CheckAvailable(ctx, productID)
	})
	if err != nil {
		return Availability{}, b.wrap(err)
	}
	return v.(Availability), nil
}

func (b *Breaker) Products(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Products(ctx, ids)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.(map[uint]models.Product), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
