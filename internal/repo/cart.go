package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

// GormRepo is the cart store. Every method is scoped by the caller's user id; a line
// that belongs to someone else behaves exactly like a line that does not exist.
type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// AddItem inserts the line with quantity 1 or increments an existing one, in one statement.
func (r *GormRepo) AddItem(ctx context.Context, userID, productID uint) (models.CartLine, error) {
	var line models.CartLine
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ins := models.CartLine{UserID: userID, ProductID: productID, Quantity: 1}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart.quantity + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(&ins).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ? AND product_id = ?", userID, productID).Take(&line).Error
	})
	if err != nil {
		return models.CartLine{}, err
	}
	return line, nil
}

// SetQuantity overwrites the quantity, or deletes the line when quantity < 1.
// It returns gorm.ErrRecordNotFound when the user has no such line.
func (r *GormRepo) SetQuantity(ctx context.Context, userID, lineID uint, quantity int) (line models.CartLine, removed bool, err error) {
	if quantity < 1 {
		if err := r.RemoveItem(ctx, userID, lineID); err != nil {
			return models.CartLine{}, false, err
		}
		return models.CartLine{}, true, nil
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartLine{}).
			Where("id = ? AND user_id = ?", lineID, userID).
			Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ? AND user_id = ?", lineID, userID).Take(&line).Error
	})
	if err != nil {
		return models.CartLine{}, false, err
	}
	return line, false, nil
}

func (r *GormRepo) RemoveItem(ctx context.Context, userID, lineID uint) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetCart returns the user's lines oldest first.
func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartLine, error) {
	lines := make([]models.CartLine, 0)
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// Count is the sum of quantities, 0 for an empty cart.
func (r *GormRepo) Count(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&n).Error
	return n, err
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

// UsersHoldingProduct lists the users with productID in their cart.
func (r *GormRepo) UsersHoldingProduct(ctx context.Context, productID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("product_id = ?", productID).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
