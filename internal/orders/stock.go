package orders

import (
	"context"
	"errors"

	"github.com/abarbet/shoply-backend/pkg/db/models"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stockReserverImpl struct{}

// NewStockReserver exposes the default stock reservation implementation.
func NewStockReserver() StockReserver {
	return stockReserverImpl{}
}

// Reserve loads the product and decrements its stock. The guard on the
// UPDATE keeps stock from ever going negative under concurrent orders.
func (stockReserverImpl) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}

	product.Stock -= qty
	return &product, nil
}

// Release returns previously reserved stock to the product.
func (stockReserverImpl) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}
