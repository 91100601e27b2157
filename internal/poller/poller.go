// Package poller keeps cached cart snapshots honest when the catalog changes a listing.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/resale_cart/internal/cache"
)

const (
	EventProductUpdated = "product_updated"
	EventProductDeleted = "product_deleted"

	readErrorBackoff = time.Second
)

var ErrBadEvent = errors.New("malformed product event")

type HolderLookup interface {
	UsersHoldingProduct(ctx context.Context, productID uint) ([]uint, error)
}

type productEvent struct {
	Type      string `json:"type"`
	ProductID uint   `json:"productID"`
}

type Poller struct {
	holders HolderLookup
	cache   cache.CartCache
	reader  *kafka.Reader
	log     *slog.Logger
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6,
	})
}

func New(holders HolderLookup, c cache.CartCache, reader *kafka.Reader, log *slog.Logger) *Poller {
	return &Poller{holders: holders, cache: c, reader: reader, log: log.With("component", "product_events_poller")}
}

// Run consumes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("product_event_read_error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		if err := p.Handle(ctx, m.Value); err != nil {
			p.log.Warn("product_event_skipped", "offset", m.Offset, "partition", m.Partition, "error", err)
		}
	}
}

// Handle drops the cached snapshot of every user holding the changed product.
func (p *Poller) Handle(ctx context.Context, payload []byte) error {
	var ev productEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w", ErrBadEvent, err)
	}

	switch ev.Type {
	case EventProductUpdated, EventProductDeleted:
	default:
		return nil
	}
	if ev.ProductID == 0 {
		return fmt.Errorf("%w: missing productID", ErrBadEvent)
	}

	users, err := p.holders.UsersHoldingProduct(ctx, ev.ProductID)
	if err != nil {
		return fmt.Errorf("lookup holders of product %d: %w", ev.ProductID, err)
	}

	var failed int
	for _, userID := range users {
		if err := p.cache.Delete(ctx, userID); err != nil {
			failed++
			p.log.Error("cart_cache_invalidate_error", "user_id", userID, "product_id", ev.ProductID, "error", err)
		}
	}
	p.log.Debug("product_event_applied", "type", ev.Type, "product_id", ev.ProductID, "users", len(users), "failed", failed)
	return nil
}

func (p *Poller) Close() error {
	return p.reader.Close()
}
