package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

var ErrOutOfRange = errors.New("number out of range")

// FlexInt accepts 3, "3" and 3.0 the way the storefront script sends them. Anything
// unparsable decodes to 0. A number outside the int64 range is an error rather than a
// wrapped value.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		*n = FlexInt(v)
		return nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}

	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return fmt.Errorf("%w: %s", ErrOutOfRange, s)
	case err != nil:
		*n = 0
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 can hold.
	if math.IsNaN(f) || f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
		return fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	*n = FlexInt(int64(f))
	return nil
}

// ID returns the value as a row id, 0 when it cannot be one.
func (n FlexInt) ID() uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

type AddItemRequest struct {
	ProductID FlexInt `json:"product_id"`
}

type UpdateItemRequest struct {
	CartID   FlexInt `json:"cart_id"`
	Quantity FlexInt `json:"quantity"`
}

type RemoveItemRequest struct {
	CartID FlexInt `json:"cart_id"`
}

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CartItem struct {
	ID        uint        `json:"id"`
	ProductID uint        `json:"product_id"`
	Name      string      `json:"name"`
	Image     string      `json:"image"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
}

type CartResponse struct {
	Success bool        `json:"success"`
	Items   []CartItem  `json:"items"`
	Total   json.Number `json:"total"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type UpdateItemResponse struct {
	Success  bool `json:"success"`
	Removed  bool `json:"removed"`
	Quantity int  `json:"quantity"`
}

func NewCartResponse(snap *models.CartSnapshot) CartResponse {
	items := make([]CartItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, CartItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     json.Number(it.Price.String()),
			Quantity:  it.Quantity,
		})
	}
	return CartResponse{
		Success: true,
		Items:   items,
		Total:   json.Number(snap.Total.String()),
	}
}
