package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

// OrderFilter narrows List. Skip/Limit paginate; a zero Limit means no cap.
type OrderFilter struct {
	Status  *types.OrderStatus
	TableID *string
	Skip    int
	Limit   int
}

type OrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, order *types.Order) (*types.Order, error)
	GetByID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Order, error)
	List(ctx context.Context, tx *gorm.DB, filter OrderFilter) ([]*types.Order, int64, error)
	Save(ctx context.Context, tx *gorm.DB, order *types.Order) error
	Delete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	repoLog := baseLog.With("repo", "OrderRepo")
	return &orderRepo{db: db, log: repoLog}
}

func (or *orderRepo) Create(ctx context.Context, tx *gorm.DB, order *types.Order) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	if err := transaction.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}

	return order, nil
}

// GetByID loads the order with its items. Returns (nil, nil) when absent.
func (or *orderRepo) GetByID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var result types.Order
	if err := transaction.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

func (or *orderRepo) List(ctx context.Context, tx *gorm.DB, filter OrderFilter) ([]*types.Order, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	query := transaction.WithContext(ctx).Model(&types.Order{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.TableID != nil {
		query = query.Where("table_id = ?", *filter.TableID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Order
	query = query.Preload("Items").Order("created_at DESC")
	if filter.Skip > 0 {
		query = query.Offset(filter.Skip)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (or *orderRepo) Save(ctx context.Context, tx *gorm.DB, order *types.Order) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	// Save only the order row; items are managed through OrderItemRepo.
	return transaction.WithContext(ctx).Omit("Items", "Table").Save(order).Error
}

func (or *orderRepo) Delete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	if err := transaction.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&types.OrderItem{}).Error; err != nil {
		return err
	}

	return transaction.WithContext(ctx).
		Where("id = ?", orderID).
		Delete(&types.Order{}).Error
}
