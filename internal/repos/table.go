package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

type TableRepo interface {
	Create(ctx context.Context, tx *gorm.DB, tables []*types.Table) ([]*types.Table, error)
	GetByID(ctx context.Context, tx *gorm.DB, tableID string) (*types.Table, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Table, error)
}

type tableRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTableRepo(db *gorm.DB, baseLog *logger.Logger) TableRepo {
	repoLog := baseLog.With("repo", "TableRepo")
	return &tableRepo{db: db, log: repoLog}
}

func (tr *tableRepo) Create(ctx context.Context, tx *gorm.DB, tables []*types.Table) ([]*types.Table, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if len(tables) == 0 {
		return []*types.Table{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&tables).Error; err != nil {
		return nil, err
	}

	return tables, nil
}

func (tr *tableRepo) GetByID(ctx context.Context, tx *gorm.DB, tableID string) (*types.Table, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var result types.Table
	if err := transaction.WithContext(ctx).
		Where("id = ?", tableID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

func (tr *tableRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Table, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Table
	if err := transaction.WithContext(ctx).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
