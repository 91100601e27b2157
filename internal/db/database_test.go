package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/resale_cart/internal/db"
	"github.com/Skotchmaster/resale_cart/internal/db/dbtest"
	"github.com/Skotchmaster/resale_cart/internal/models"
)

func TestOpen_Validation(t *testing.T) {
	_, err := db.Open(context.Background(), db.DriverSQLite, "")
	assert.Error(t, err)

	_, err = db.Open(context.Background(), "oracle", "whatever")
	assert.ErrorContains(t, err, "unknown DB_DRIVER")
}

func TestMigrate_CartOnly(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	require.NoError(t, db.Migrate(gdb, false))
	assert.True(t, gdb.Migrator().HasTable(&models.CartLine{}))
	assert.False(t, gdb.Migrator().HasTable(&models.Product{}))
	assert.NoError(t, db.Ping(context.Background(), gdb))
}

func TestMigrate_UniqueLinePerProduct(t *testing.T) {
	gdb := dbtest.SQLite(t)

	require.NoError(t, gdb.Create(&models.CartLine{UserID: 1, ProductID: 10, Quantity: 1}).Error)
	err := gdb.Create(&models.CartLine{UserID: 1, ProductID: 10, Quantity: 1}).Error
	assert.Error(t, err)

	require.NoError(t, gdb.Create(&models.CartLine{UserID: 2, ProductID: 10, Quantity: 1}).Error)
}

func TestMigrate_RejectsNonPositiveQuantity(t *testing.T) {
	gdb := dbtest.SQLite(t)

	err := gdb.Create(&models.CartLine{UserID: 1, ProductID: 10, Quantity: -1}).Error
	assert.Error(t, err)
}
