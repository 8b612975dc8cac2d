package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

type OrderItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, items []*types.OrderItem) ([]*types.OrderItem, error)
	GetByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.OrderItem, error)
	// GetByOrderProductNote resolves the merge-on-add target: the line on
	// this order with the same product and the same note, where both-nil
	// notes count as equal.
	GetByOrderProductNote(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, note *string) (*types.OrderItem, error)
	CountByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
	Save(ctx context.Context, tx *gorm.DB, item *types.OrderItem) error
	Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
}

type orderItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderItemRepo(db *gorm.DB, baseLog *logger.Logger) OrderItemRepo {
	repoLog := baseLog.With("repo", "OrderItemRepo")
	return &orderItemRepo{db: db, log: repoLog}
}

func (oir *orderItemRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.OrderItem) ([]*types.OrderItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	if len(items) == 0 {
		return []*types.OrderItem{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (oir *orderItemRepo) GetByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*types.OrderItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	var result types.OrderItem
	if err := transaction.WithContext(ctx).
		Where("id = ?", itemID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

func (oir *orderItemRepo) GetByOrderProductNote(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, note *string) (*types.OrderItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	query := transaction.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("product_id = ?", productID)
	if note == nil {
		query = query.Where("note IS NULL")
	} else {
		query = query.Where("note = ?", *note)
	}

	var result types.OrderItem
	if err := query.First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

func (oir *orderItemRepo) CountByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.OrderItem{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (oir *orderItemRepo) Save(ctx context.Context, tx *gorm.DB, item *types.OrderItem) error {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	return transaction.WithContext(ctx).Omit("Product").Save(item).Error
}

func (oir *orderItemRepo) Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = oir.db
	}

	return transaction.WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&types.OrderItem{}).Error
}
