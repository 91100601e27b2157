package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/resale_cart/internal/catalog"
	"github.com/Skotchmaster/resale_cart/internal/db"
	"github.com/Skotchmaster/resale_cart/internal/db/dbtest"
	"github.com/Skotchmaster/resale_cart/internal/middleware/auth"
	"github.com/Skotchmaster/resale_cart/internal/models"
	"github.com/Skotchmaster/resale_cart/internal/repo"
	"github.com/Skotchmaster/resale_cart/internal/service"
)

var testSecret = []byte("http-test-secret")

type testEnv struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestEnv(t *testing.T, ready func(context.Context) error) *testEnv {
	t.Helper()

	gdb := dbtest.SQLite(t)
	dbtest.SeedProduct(t, gdb, 10, 2, "Jaket Denim", 150000, models.ProductStatusAvailable)
	dbtest.SeedProduct(t, gdb, 11, 2, "Tas Kulit", 50000, models.ProductStatusSold)
	dbtest.SeedProduct(t, gdb, 20, 1, "Kamera Lama", 300000, models.ProductStatusAvailable)

	svc := service.NewCartService(service.Deps{
		Repo:    repo.NewGormRepo(gdb),
		Catalog: catalog.NewGormCatalog(gdb),
	})
	if ready == nil {
		ready = func(ctx context.Context) error { return db.Ping(ctx, gdb) }
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(log, &Deps{
		CartHandler: &CartHTTP{Svc: svc},
		Gate:        auth.NewSessionGate(testSecret, "/auth/login.php"),
		CartPageURL: "/index.php#cart",
		Ready:       ready,
	})
	return &testEnv{e: e, db: gdb}
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := auth.SignAccessToken(testSecret, userID, "user", time.Hour)
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, path string, userID uint, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != 0 {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: tokenFor(t, userID)})
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestCompatRoutes_Scenario(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, map[string]any{"product_id": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = env.do(t, http.MethodGet, "/ajax/get-cart.php", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 150000, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Jaket Denim", item["name"])
	assert.Equal(t, "/uploads/10.jpg", item["image"])
	assert.EqualValues(t, 1, item["quantity"])
	cartID := item["id"]

	_, _ = env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, map[string]any{"product_id": "10"})

	_, body = env.do(t, http.MethodGet, "/ajax/get-cart.php", 1, nil)
	assert.EqualValues(t, 300000, body["total"])

	_, body = env.do(t, http.MethodGet, "/ajax/get-cart-count.php", 1, nil)
	assert.EqualValues(t, 2, body["count"])

	rec, body = env.do(t, http.MethodPost, "/ajax/update-cart.php", 1, map[string]any{"cart_id": cartID, "quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["removed"])

	_, body = env.do(t, http.MethodGet, "/ajax/get-cart.php", 1, nil)
	assert.Empty(t, body["items"])
	assert.NotNil(t, body["items"])
	assert.EqualValues(t, 0, body["total"])

	_, body = env.do(t, http.MethodGet, "/ajax/get-cart-count.php", 1, nil)
	assert.EqualValues(t, 0, body["count"])
}

func TestAddItem_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body any
		msg  string
	}{
		{"own listing", map[string]any{"product_id": 20}, MsgSelfPurchase},
		{"sold listing", map[string]any{"product_id": 11}, MsgNotAvailable},
		{"missing listing", map[string]any{"product_id": 999}, MsgNotAvailable},
		{"no product id", map[string]any{}, MsgNotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}

	_, body := env.do(t, http.MethodGet, "/ajax/get-cart-count.php", 1, nil)
	assert.EqualValues(t, 0, body["count"])
}

func TestAddItem_MalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/ajax/add-to-cart.php", bytes.NewBufferString(`{"product_id":`))
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: tokenFor(t, 1)})
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"`+MsgInvalidBody+`"}`, rec.Body.String())
}

func TestUpdateItem_OversizedQuantityKeepsLine(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _ = env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, map[string]any{"product_id": 10})
	var line models.CartLine
	require.NoError(t, env.db.Where("user_id = ?", 1).First(&line).Error)

	body := `{"cart_id":` + strconv.FormatUint(uint64(line.ID), 10) + `,"quantity":9999999999999999999}`
	req := httptest.NewRequest(http.MethodPost, "/ajax/update-cart.php", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: tokenFor(t, 1)})
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"`+MsgInvalidBody+`"}`, rec.Body.String())

	var kept models.CartLine
	require.NoError(t, env.db.First(&kept, line.ID).Error)
	assert.Equal(t, 1, kept.Quantity)
}

func TestForeignLine(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _ = env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, map[string]any{"product_id": 10})
	var line models.CartLine
	require.NoError(t, env.db.Where("user_id = ?", 1).Take(&line).Error)

	rec, body := env.do(t, http.MethodPost, "/ajax/remove-from-cart.php", 3, map[string]any{"cart_id": line.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, MsgLineNotFound, body["message"])

	_, body = env.do(t, http.MethodPost, "/ajax/update-cart.php", 3, map[string]any{"cart_id": line.ID, "quantity": 5})
	assert.Equal(t, false, body["success"])

	_, body = env.do(t, http.MethodGet, "/ajax/get-cart-count.php", 1, nil)
	assert.EqualValues(t, 1, body["count"])

	_, body = env.do(t, http.MethodPost, "/ajax/remove-from-cart.php", 1, map[string]any{"cart_id": line.ID})
	assert.Equal(t, true, body["success"])
}

func TestRESTRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/cart/items", 1, map[string]any{"product_id": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	var line models.CartLine
	require.NoError(t, env.db.Where("user_id = ?", 1).Take(&line).Error)
	path := "/api/v1/cart/items/" + jsonID(line.ID)

	rec, body = env.do(t, http.MethodPatch, path, 1, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["quantity"])

	_, body = env.do(t, http.MethodGet, "/api/v1/cart/count", 1, nil)
	assert.EqualValues(t, 4, body["count"])

	_, body = env.do(t, http.MethodGet, "/api/v1/cart", 1, nil)
	assert.EqualValues(t, 600000, body["total"])

	_, body = env.do(t, http.MethodPatch, "/api/v1/cart/items/abc", 1, map[string]any{"quantity": 4})
	assert.Equal(t, MsgLineNotFound, body["message"])

	rec, body = env.do(t, http.MethodDelete, path, 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	_, _ = env.do(t, http.MethodPost, "/api/v1/cart/items", 1, map[string]any{"product_id": 10})
	rec, body = env.do(t, http.MethodDelete, "/api/v1/cart", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	_, body = env.do(t, http.MethodGet, "/api/v1/cart/count", 1, nil)
	assert.EqualValues(t, 0, body["count"])
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/ajax/add-to-cart.php"},
		{http.MethodGet, "/ajax/get-cart.php"},
		{http.MethodGet, "/ajax/get-cart-count.php"},
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodDelete, "/api/v1/cart"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec, body := env.do(t, tc.method, tc.path, 0, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, auth.MsgLoginRequired, body["message"])
		})
	}
}

func TestCartPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/cart", 0, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login.php", rec.Header().Get(echo.HeaderLocation))

	rec, _ = env.do(t, http.MethodGet, "/cart", 1, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/index.php#cart", rec.Header().Get(echo.HeaderLocation))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/health/live", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/health/ready", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	down := newTestEnv(t, func(context.Context) error { return errors.New("db down") })
	rec, body := down.do(t, http.MethodGet, "/health/ready", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestStorageFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.db.Migrator().DropTable(&models.CartLine{}))

	rec, body := env.do(t, http.MethodPost, "/ajax/add-to-cart.php", 1, map[string]any{"product_id": 10})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, MsgInternalError, body["message"])
	assert.NotContains(t, rec.Body.String(), "no such table")

	rec, body = env.do(t, http.MethodGet, "/ajax/get-cart-count.php", 1, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
}

func jsonID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
