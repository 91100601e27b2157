// Package dbtest opens throwaway databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/resale_cart/internal/db"
	"github.com/Skotchmaster/resale_cart/internal/models"
)

// SQLite returns a fresh migrated in-memory database private to the test.
func SQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, true))

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// Postgres connects to CART_TEST_DATABASE_URL or skips the test.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("CART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CART_TEST_DATABASE_URL is required for postgres tests")
	}

	gdb, err := db.Open(context.Background(), db.DriverPgx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, true))

	t.Cleanup(func() {
		gdb.Exec("TRUNCATE TABLE cart, products RESTART IDENTITY CASCADE")
		_ = db.Close(gdb)
	})
	return gdb
}

func SeedProduct(t *testing.T, gdb *gorm.DB, id, sellerID uint, name string, price int64, status string) models.Product {
	t.Helper()

	p := models.Product{
		ID:       id,
		SellerID: sellerID,
		Name:     name,
		Image:    fmt.Sprintf("/uploads/%d.jpg", id),
		Price:    decimal.NewFromInt(price),
		Status:   status,
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}
