package httpserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/resale_cart/internal/logging"
	"github.com/Skotchmaster/resale_cart/internal/middleware/auth"
	"github.com/Skotchmaster/resale_cart/internal/service"
	"github.com/Skotchmaster/resale_cart/internal/transport"
)

const (
	MsgNotAvailable  = "Produk tidak tersedia"
	MsgSelfPurchase  = "Tidak bisa membeli produk sendiri"
	MsgLineNotFound  = "Item keranjang tidak ditemukan"
	MsgInvalidBody   = "Permintaan tidak valid"
	MsgInternalError = "Terjadi kesalahan, silakan coba lagi"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	var req transport.AddItemRequest
	if err := decodeBody(c, &req); err != nil {
		l.Warn("add_item_error", "status", 400, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusBadRequest, transport.Envelope{Message: MsgInvalidBody})
	}

	line, err := h.Svc.AddItem(ctx, id.UserID, req.ProductID.ID())
	if err != nil {
		return h.fail(c, l, "add_item", err)
	}

	l.Info("add_item_success", "user_id", id.UserID, "cart_id", line.ID, "quantity", line.Quantity)
	return c.JSON(http.StatusOK, transport.Envelope{Success: true})
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	var req transport.UpdateItemRequest
	if err := decodeBody(c, &req); err != nil {
		l.Warn("update_item_error", "status", 400, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusBadRequest, transport.Envelope{Message: MsgInvalidBody})
	}
	lineID := lineIDFrom(c, req.CartID)

	line, removed, err := h.Svc.SetQuantity(ctx, id.UserID, lineID, int(req.Quantity))
	if err != nil {
		return h.fail(c, l, "update_item", err)
	}

	l.Info("update_item_success", "user_id", id.UserID, "cart_id", lineID, "removed", removed)
	return c.JSON(http.StatusOK, transport.UpdateItemResponse{Success: true, Removed: removed, Quantity: line.Quantity})
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	var req transport.RemoveItemRequest
	if err := decodeBody(c, &req); err != nil {
		l.Warn("remove_item_error", "status", 400, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusBadRequest, transport.Envelope{Message: MsgInvalidBody})
	}
	lineID := lineIDFrom(c, req.CartID)

	if err := h.Svc.RemoveItem(ctx, id.UserID, lineID); err != nil {
		return h.fail(c, l, "remove_item", err)
	}

	l.Info("remove_item_success", "user_id", id.UserID, "cart_id", lineID)
	return c.JSON(http.StatusOK, transport.Envelope{Success: true})
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	snap, err := h.Svc.Present(ctx, id.UserID)
	if err != nil {
		return h.fail(c, l, "get_cart", err)
	}

	return c.JSON(http.StatusOK, transport.NewCartResponse(snap))
}

// GetCartCount always answers 200; a storage failure reports a zero count.
func (h *CartHTTP) GetCartCount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart_count")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	n, err := h.Svc.GetCartCount(ctx, id.UserID)
	if err != nil {
		l.Error("get_cart_count_error", "user_id", id.UserID, "error", err)
		n = 0
	}
	return c.JSON(http.StatusOK, transport.CountResponse{Count: n})
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear_cart")

	id, ok := auth.IdentityFrom(c)
	if !ok {
		return unauthorized(c, l)
	}

	if err := h.Svc.ClearCart(ctx, id.UserID); err != nil {
		return h.fail(c, l, "clear_cart", err)
	}

	l.Info("clear_cart_success", "user_id", id.UserID)
	return c.JSON(http.StatusOK, transport.Envelope{Success: true})
}

// fail maps service errors onto the response envelope. Rule violations are answered with
// 200 so the storefront shows the message; storage errors stay in the log.
func (h *CartHTTP) fail(c echo.Context, l *slog.Logger, op string, err error) error {
	var msg string
	switch {
	case service.IsProductNotAvailable(err):
		msg = MsgNotAvailable
	case errors.Is(err, service.ErrSelfPurchase):
		msg = MsgSelfPurchase
	case errors.Is(err, service.ErrNotFound):
		msg = MsgLineNotFound
	default:
		l.Error(op+"_error", "status", http.StatusInternalServerError, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.Envelope{Message: MsgInternalError})
	}

	l.Warn(op+"_rejected", "status", http.StatusOK, "reason", err.Error())
	return c.JSON(http.StatusOK, transport.Envelope{Message: msg})
}

func unauthorized(c echo.Context, l *slog.Logger) error {
	l.Warn("identity_missing", "status", http.StatusUnauthorized)
	return c.JSON(http.StatusUnauthorized, transport.Envelope{Message: auth.MsgLoginRequired})
}

// decodeBody reads a JSON body whatever the Content-Type says. An empty body is not an error.
func decodeBody(c echo.Context, v any) error {
	err := c.Echo().JSONSerializer.Deserialize(c, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// lineIDFrom prefers the :id path parameter of the REST routes over the body's cart_id.
func lineIDFrom(c echo.Context, fromBody transport.FlexInt) uint {
	if p := c.Param("id"); p != "" {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return 0
		}
		return uint(id)
	}
	return fromBody.ID()
}
